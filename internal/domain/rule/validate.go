package rule

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the rule against the invariants of its kind. It returns a
// *ValidationError for the first violation found.
func Validate(r Rule) error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if err := structValidator().Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return invalid(strings.ToLower(fe.Field()), "failed %q constraint", fe.Tag())
		}
		return invalid("rule", "%v", err)
	}

	switch r.Kind {
	case KindFlat:
		if r.Amount.IsNegative() {
			return invalid("amount", "must be >= 0, got %s", r.Amount)
		}
	case KindPercentage:
		if err := checkPercent("rate", r.Rate); err != nil {
			return err
		}
	case KindTiered:
		return validateTiers(r.Tiers)
	default:
		return invalid("type", "unknown rule type %q", r.Kind)
	}
	return nil
}

func checkPercent(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return invalid(field, "must be between 0 and 100, got %s", rate)
	}
	return nil
}

// validateTiers enforces that sorted tiers form one contiguous range.
func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return invalid("tiers", "at least one tier is required")
	}
	sorted := Rule{Tiers: tiers}.SortedTiers()
	last := len(sorted) - 1
	for i, t := range sorted {
		field := fmt.Sprintf("tiers[%d]", i)
		if t.MinAmount.IsNegative() {
			return invalid(field, "min_amount must be >= 0, got %s", t.MinAmount)
		}
		if t.Rate.IsNegative() {
			return invalid(field, "rate must be >= 0, got %s", t.Rate)
		}
		if t.IsPercentage {
			if err := checkPercent(field+".rate", t.Rate); err != nil {
				return err
			}
		}
		if t.Unbounded() {
			if i != last {
				return invalid(field, "only the last tier may be unbounded")
			}
			continue
		}
		if t.MaxAmount.LessThanOrEqual(t.MinAmount) {
			return invalid(field, "max_amount %s must be greater than min_amount %s", t.MaxAmount, t.MinAmount)
		}
		if i == last {
			continue
		}
		next := sorted[i+1].MinAmount
		switch {
		case t.MaxAmount.LessThan(next):
			return invalid(field, "gap between %s and %s", t.MaxAmount, next)
		case t.MaxAmount.GreaterThan(next):
			return invalid(field, "overlap between %s and %s", t.MaxAmount, next)
		}
	}
	return nil
}
