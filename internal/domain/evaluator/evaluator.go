// Package evaluator computes the commission a rule pays for a deal amount.
//
// Evaluate is a pure function of its inputs: it never mutates the rule and
// is safe for concurrent use.
package evaluator

import (
	"errors"
	"fmt"

	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
)

// moneyPlaces is the number of decimals shown in breakdown lines.
const moneyPlaces = 2

// NoTier marks a result that did not come from a tier.
const NoTier = -1

var hundred = decimal.NewFromInt(100)

// Sentinel errors.
var (
	ErrNegativeAmount = errors.New("deal amount must not be negative")
	ErrUnknownKind    = errors.New("unknown rule type")
)

// Result is the proposed commission for one deal amount.
type Result struct {
	RuleID       string          `json:"rule_id"`
	Kind         rule.Kind       `json:"type"`
	DealAmount   decimal.Decimal `json:"deal_amount"`
	Amount       decimal.Decimal `json:"commission"`
	Rate         decimal.Decimal `json:"rate"`
	IsPercentage bool            `json:"is_percentage"`
	TierIndex    int             `json:"tier_index"`
	Breakdown    []string        `json:"breakdown"`
}

// Evaluate applies r to dealAmount.
func Evaluate(r rule.Rule, dealAmount decimal.Decimal) (Result, error) {
	if dealAmount.IsNegative() {
		return Result{}, fmt.Errorf("%w: %s", ErrNegativeAmount, dealAmount)
	}
	res := Result{
		RuleID:     r.ID,
		Kind:       r.Kind,
		DealAmount: dealAmount,
		TierIndex:  NoTier,
	}

	switch r.Kind {
	case rule.KindFlat:
		res.Amount = r.Amount
		res.Rate = r.Amount
		res.Breakdown = []string{fmt.Sprintf("Flat commission: %s", money(r.Amount))}
	case rule.KindPercentage:
		res.Amount = percentOf(dealAmount, r.Rate)
		res.Rate = r.Rate
		res.IsPercentage = true
		res.Breakdown = []string{fmt.Sprintf("%s%% of %s = %s", r.Rate, money(dealAmount), money(res.Amount))}
	case rule.KindTiered:
		evaluateTiered(r, dealAmount, &res)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return res, nil
}

func evaluateTiered(r rule.Rule, dealAmount decimal.Decimal, res *Result) {
	tiers := r.SortedTiers()
	if len(tiers) == 0 {
		res.Amount = decimal.Zero
		res.Breakdown = []string{"No tiers defined"}
		return
	}

	idx := SelectTier(tiers, dealAmount)
	if idx == NoTier {
		idx = 0
	}
	t := tiers[idx]
	res.TierIndex = idx
	res.Rate = t.Rate
	res.IsPercentage = t.IsPercentage

	var line string
	if t.IsPercentage {
		res.Amount = percentOf(dealAmount, t.Rate)
		line = fmt.Sprintf("%s%% of %s = %s", t.Rate, money(dealAmount), money(res.Amount))
	} else {
		res.Amount = t.Rate
		line = fmt.Sprintf("Flat tier amount: %s", money(t.Rate))
	}
	res.Breakdown = []string{"Tier: " + tierRange(t), line}
}

// SelectTier returns the index of the first tier, in the given order, that
// contains amount, or NoTier. Callers pass tiers sorted by MinAmount, so an
// amount equal to a shared boundary resolves to the lower tier.
func SelectTier(tiers []rule.Tier, amount decimal.Decimal) int {
	for i, t := range tiers {
		if t.Contains(amount) {
			return i
		}
	}
	return NoTier
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

func tierRange(t rule.Tier) string {
	if t.Unbounded() {
		return money(t.MinAmount) + "+"
	}
	return money(t.MinAmount) + " - " + money(*t.MaxAmount)
}

func money(v decimal.Decimal) string { return v.StringFixed(moneyPlaces) }
