// Package rule defines commission payout rules and their shape invariants.
package rule

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the closed set of rule variants.
type Kind string

// Supported rule kinds.
const (
	KindFlat       Kind = "flat"
	KindPercentage Kind = "percentage"
	KindTiered     Kind = "tiered"
)

// AppliesToAll is the deal-category tag that matches every deal.
const AppliesToAll = "all"

// Tier is one amount range of a tiered rule. A nil MaxAmount means the tier
// is unbounded above.
type Tier struct {
	MinAmount    decimal.Decimal  `json:"min_amount" yaml:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty" yaml:"max_amount,omitempty"`
	Rate         decimal.Decimal  `json:"rate" yaml:"rate"`
	IsPercentage bool             `json:"is_percentage" yaml:"is_percentage"`
}

// Unbounded reports whether the tier has no upper limit.
func (t Tier) Unbounded() bool { return t.MaxAmount == nil }

// Contains reports whether amount falls inside the tier. Both ends are
// inclusive.
func (t Tier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.MinAmount) {
		return false
	}
	return t.MaxAmount == nil || amount.LessThanOrEqual(*t.MaxAmount)
}

// Rule is a configured payout formula. Only the fields belonging to Kind are
// meaningful: Amount for flat, Rate for percentage, Tiers for tiered.
type Rule struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" validate:"required"`
	Kind      Kind            `json:"type" validate:"required,oneof=flat percentage tiered"`
	IsActive  bool            `json:"is_active"`
	AppliesTo []string        `json:"applies_to" validate:"dive,required"`
	Amount    decimal.Decimal `json:"amount"`
	Rate      decimal.Decimal `json:"rate"`
	Tiers     []Tier          `json:"tiers,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can never alias a stored rule.
func (r Rule) Clone() Rule {
	out := r
	out.AppliesTo = slices.Clone(r.AppliesTo)
	if r.Tiers != nil {
		out.Tiers = make([]Tier, len(r.Tiers))
		for i, t := range r.Tiers {
			if t.MaxAmount != nil {
				m := *t.MaxAmount
				t.MaxAmount = &m
			}
			out.Tiers[i] = t
		}
	}
	return out
}

// SortedTiers returns a copy of the tiers ordered by MinAmount ascending.
func (r Rule) SortedTiers() []Tier {
	tiers := r.Clone().Tiers
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinAmount.LessThan(tiers[j].MinAmount)
	})
	return tiers
}

// Applies reports whether the rule covers the given deal category. An empty
// category is treated as uncategorised and always matches.
func (r Rule) Applies(category string) bool {
	if category == "" || len(r.AppliesTo) == 0 {
		return true
	}
	return slices.Contains(r.AppliesTo, AppliesToAll) || slices.Contains(r.AppliesTo, category)
}

// Normalize fills defaults on a rule about to be stored.
func (r *Rule) Normalize() {
	if len(r.AppliesTo) == 0 {
		r.AppliesTo = []string{AppliesToAll}
	}
}
