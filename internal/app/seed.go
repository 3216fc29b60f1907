package service

import (
	"fmt"
	"os"

	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout of a seed rule file.
type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

type seedRule struct {
	Name      string     `yaml:"name"`
	Type      string     `yaml:"type"`
	Active    *bool      `yaml:"is_active"`
	AppliesTo []string   `yaml:"applies_to"`
	Amount    string     `yaml:"amount"`
	Rate      string     `yaml:"rate"`
	Tiers     []seedTier `yaml:"tiers"`
}

type seedTier struct {
	Min          string `yaml:"min_amount"`
	Max          string `yaml:"max_amount"`
	Rate         string `yaml:"rate"`
	IsPercentage bool   `yaml:"is_percentage"`
}

// LoadSeedRules reads rule definitions from a YAML file. Rules are active
// unless is_active is false. Shape validation happens when they are stored.
func LoadSeedRules(path string) ([]rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]rule.Rule, 0, len(f.Rules))
	for i, sr := range f.Rules {
		r, err := sr.toRule()
		if err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", path, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (sr seedRule) toRule() (rule.Rule, error) {
	r := rule.Rule{
		Name:      sr.Name,
		Kind:      rule.Kind(sr.Type),
		IsActive:  sr.Active == nil || *sr.Active,
		AppliesTo: sr.AppliesTo,
	}
	var err error
	if r.Amount, err = parseDecimal(sr.Amount); err != nil {
		return rule.Rule{}, fmt.Errorf("amount: %w", err)
	}
	if r.Rate, err = parseDecimal(sr.Rate); err != nil {
		return rule.Rule{}, fmt.Errorf("rate: %w", err)
	}
	for j, st := range sr.Tiers {
		t := rule.Tier{IsPercentage: st.IsPercentage}
		if t.MinAmount, err = parseDecimal(st.Min); err != nil {
			return rule.Rule{}, fmt.Errorf("tier %d min_amount: %w", j, err)
		}
		if t.Rate, err = parseDecimal(st.Rate); err != nil {
			return rule.Rule{}, fmt.Errorf("tier %d rate: %w", j, err)
		}
		if st.Max != "" {
			upper, err := decimal.NewFromString(st.Max)
			if err != nil {
				return rule.Rule{}, fmt.Errorf("tier %d max_amount: %w", j, err)
			}
			t.MaxAmount = &upper
		}
		r.Tiers = append(r.Tiers, t)
	}
	return r, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
