package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/okian/commission/pkg/logger"
	"github.com/okian/commission/pkg/metrics"
	"github.com/shopspring/decimal"
)

const copySuffix = " (Copy)"

// RulePatch carries a partial rule update. Nil fields are left unchanged.
type RulePatch struct {
	Name      *string          `json:"name,omitempty"`
	Kind      *rule.Kind       `json:"type,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
	AppliesTo []string         `json:"applies_to,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	Tiers     []rule.Tier      `json:"tiers,omitempty"`
}

func (p RulePatch) apply(r rule.Rule) rule.Rule {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Kind != nil {
		out.Kind = *p.Kind
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	if p.AppliesTo != nil {
		out.AppliesTo = append([]string(nil), p.AppliesTo...)
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Rate != nil {
		out.Rate = *p.Rate
	}
	if p.Tiers != nil {
		out.Tiers = rule.Rule{Tiers: p.Tiers}.Clone().Tiers
	}
	return out
}

// ListRules returns every rule in creation order.
func (s *Service) ListRules(_ context.Context) []rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rule.Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

// GetRule returns the rule with id.
func (s *Service) GetRule(_ context.Context, id string) (rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.findRule(id)
	if i < 0 {
		return rule.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return s.rules[i].Clone(), nil
}

// CreateRule validates r and stores it under a fresh id.
func (s *Service) CreateRule(ctx context.Context, r rule.Rule, actor audit.Actor) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createRuleLocked(ctx, r, actor, "")
}

func (s *Service) createRuleLocked(ctx context.Context, r rule.Rule, actor audit.Actor, notes string) (rule.Rule, error) {
	r = r.Clone()
	r.Normalize()
	if err := rule.Validate(r); err != nil {
		return rule.Rule{}, err
	}
	now := s.now()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now

	t := s.begin()
	t.putRule(r)
	t.audit(systemEntry(r.ID, actor, audit.ActionCreated, nil, audit.Snapshot(r), notes))
	if err := t.commit(ctx); err != nil {
		return rule.Rule{}, err
	}

	metrics.RecordRuleMutation("create")
	s.logger.Info(ctx, "rule created",
		logger.String("ruleID", r.ID),
		logger.String("type", string(r.Kind)),
		logger.String("actor", actor.ID),
	)
	return r.Clone(), nil
}

// UpdateRule applies patch to rule id. The result must still validate.
func (s *Service) UpdateRule(ctx context.Context, id string, patch RulePatch, actor audit.Actor) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findRule(id)
	if i < 0 {
		return rule.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	before := s.rules[i]
	after := patch.apply(before)
	after.Normalize()
	if err := rule.Validate(after); err != nil {
		return rule.Rule{}, err
	}
	after.UpdatedAt = s.now()

	prev, next := changedFields(before, after)
	if len(next) == 0 {
		return before.Clone(), nil
	}

	t := s.begin()
	t.putRule(after)
	t.audit(systemEntry(id, actor, audit.ActionUpdated, audit.Snapshot(prev), audit.Snapshot(next), ""))
	if err := t.commit(ctx); err != nil {
		return rule.Rule{}, err
	}

	metrics.RecordRuleMutation("update")
	s.logger.Info(ctx, "rule updated",
		logger.String("ruleID", id),
		logger.Int("changedFields", len(next)),
		logger.String("actor", actor.ID),
	)
	return after.Clone(), nil
}

// DeleteRule removes rule id. Existing commissions keep their rule snapshot.
func (s *Service) DeleteRule(ctx context.Context, id string, actor audit.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findRule(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	removed := s.rules[i]

	t := s.begin()
	t.removeRule(id)
	t.audit(systemEntry(id, actor, audit.ActionDeleted, audit.Snapshot(removed), nil, ""))
	if err := t.commit(ctx); err != nil {
		return err
	}

	metrics.RecordRuleMutation("delete")
	s.logger.Info(ctx, "rule deleted", logger.String("ruleID", id), logger.String("actor", actor.ID))
	return nil
}

// DuplicateRule stores a copy of rule id under a new id, with " (Copy)"
// appended to its name.
func (s *Service) DuplicateRule(ctx context.Context, id string, actor audit.Actor) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findRule(id)
	if i < 0 {
		return rule.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	dup := s.rules[i].Clone()
	dup.Name += copySuffix
	return s.createRuleLocked(ctx, dup, actor, "duplicated from "+id)
}

// SeedRules stores rules when no rule exists yet. It returns how many
// rules were added.
func (s *Service) SeedRules(ctx context.Context, rules []rule.Rule) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rules) > 0 || len(rules) == 0 {
		return 0, nil
	}

	now := s.now()
	t := s.begin()
	for _, r := range rules {
		r = r.Clone()
		r.Normalize()
		if err := rule.Validate(r); err != nil {
			return 0, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
		r.ID = s.newID()
		r.CreatedAt = now
		r.UpdatedAt = now
		t.putRule(r)
		t.audit(systemEntry(r.ID, audit.System, audit.ActionCreated, nil, audit.Snapshot(r), "seeded"))
	}
	if err := t.commit(ctx); err != nil {
		return 0, err
	}

	metrics.RecordRuleMutation("seed")
	s.logger.Info(ctx, "seeded rules", logger.Int("count", len(rules)))
	return len(rules), nil
}

func systemEntry(ruleID string, actor audit.Actor, action audit.Action, prev, next json.RawMessage, notes string) audit.Entry {
	return audit.Entry{
		SubjectID:     ruleID,
		Scope:         audit.ScopeSystem,
		UserID:        actor.ID,
		UserName:      actor.Name,
		Action:        action,
		PreviousValue: prev,
		NewValue:      next,
		Notes:         notes,
	}
}

// changedFields returns the JSON fields that differ between before and
// after, excluding bookkeeping timestamps.
func changedFields(before, after any) (prev, next map[string]any) {
	b, a := fieldMap(before), fieldMap(after)
	prev, next = map[string]any{}, map[string]any{}
	for k, v := range a {
		if k == "updated_at" {
			continue
		}
		if !reflect.DeepEqual(b[k], v) {
			prev[k] = b[k]
			next[k] = v
		}
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			prev[k] = v
			next[k] = nil
		}
	}
	return prev, next
}

func fieldMap(v any) map[string]any {
	out := map[string]any{}
	raw, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
