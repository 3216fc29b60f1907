package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/evaluator"
	"github.com/okian/commission/internal/domain/report"
	"github.com/okian/commission/pkg/logger"
	"github.com/okian/commission/pkg/metrics"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validateInput(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// CreateCommissionInput describes a closed deal to commission.
type CreateCommissionInput struct {
	DealID        string          `json:"deal_id" validate:"required"`
	SalesPersonID string          `json:"sales_person_id" validate:"required"`
	RuleID        string          `json:"rule_id" validate:"required"`
	DealAmount    decimal.Decimal `json:"deal_amount"`
	// Category is matched against the rule's applies-to tags. Empty matches any rule.
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// CommissionPatch carries editable commission fields.
type CommissionPatch struct {
	Notes *string `json:"notes"`
}

// Evaluate previews the commission rule ruleID pays for dealAmount.
func (s *Service) Evaluate(ctx context.Context, ruleID string, dealAmount decimal.Decimal) (evaluator.Result, error) {
	s.mu.RLock()
	i := s.findRule(ruleID)
	if i < 0 {
		s.mu.RUnlock()
		return evaluator.Result{}, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	r := s.rules[i].Clone()
	s.mu.RUnlock()

	res, err := evaluator.Evaluate(r, dealAmount)
	if err != nil {
		return evaluator.Result{}, err
	}
	metrics.RecordEvaluation(string(r.Kind))
	s.logger.Debug(ctx, "evaluated rule",
		logger.String("ruleID", ruleID),
		logger.String("dealAmount", dealAmount.String()),
		logger.String("commission", res.Amount.String()),
	)
	return res, nil
}

// CreateCommission evaluates the deal against its rule and records a
// PENDING commission together with its created audit entry.
func (s *Service) CreateCommission(ctx context.Context, in CreateCommissionInput, actor audit.Actor) (commission.Commission, error) {
	if err := validateInput(in); err != nil {
		return commission.Commission{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ri := s.findRule(in.RuleID)
	if ri < 0 {
		return commission.Commission{}, fmt.Errorf("%w: %s", ErrRuleNotFound, in.RuleID)
	}
	r := s.rules[ri]
	if !r.IsActive {
		return commission.Commission{}, fmt.Errorf("%w: %s", ErrRuleInactive, r.ID)
	}
	if !r.Applies(in.Category) {
		return commission.Commission{}, fmt.Errorf("%w: %s does not cover %q", ErrRuleNotApplicable, r.ID, in.Category)
	}
	for _, c := range s.commissions {
		if c.DealID == in.DealID && c.RuleID == in.RuleID {
			return commission.Commission{}, fmt.Errorf("%w: deal %s rule %s (%s)", ErrDuplicateCommission, in.DealID, in.RuleID, c.ID)
		}
	}

	res, err := evaluator.Evaluate(r, in.DealAmount)
	if err != nil {
		return commission.Commission{}, err
	}
	metrics.RecordEvaluation(string(r.Kind))

	now := s.now()
	c := commission.Commission{
		ID:            s.newID(),
		DealID:        in.DealID,
		SalesPersonID: in.SalesPersonID,
		RuleID:        r.ID,
		RuleKind:      r.Kind,
		Rate:          res.Rate,
		IsPercentage:  res.IsPercentage,
		DealAmount:    in.DealAmount,
		Amount:        res.Amount,
		Status:        commission.StatusPending,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	t := s.begin()
	t.putCommission(c)
	t.audit(audit.Entry{
		SubjectID: c.ID,
		DealID:    c.DealID,
		Scope:     audit.ScopeCommission,
		UserID:    actor.ID,
		UserName:  actor.Name,
		Action:    audit.ActionCreated,
		NewValue:  audit.Snapshot(c),
		Notes:     in.Notes,
	})
	if err := t.commit(ctx); err != nil {
		return commission.Commission{}, err
	}

	metrics.RecordCommissionCreated()
	s.logger.Info(ctx, "commission created",
		logger.String("commissionID", c.ID),
		logger.String("dealID", c.DealID),
		logger.String("ruleID", c.RuleID),
		logger.String("amount", c.Amount.String()),
		logger.String("actor", actor.ID),
	)
	return c.Clone(), nil
}

// Approve moves a PENDING commission to APPROVED.
func (s *Service) Approve(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusApproved, actor, notes)
}

// Reject moves a PENDING commission to CANCELLED.
func (s *Service) Reject(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusCancelled, actor, notes)
}

// MarkPaid moves an APPROVED commission to PAID and stamps its paid date.
func (s *Service) MarkPaid(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusPaid, actor, notes)
}

// UpdateStatus moves commission id to status under the same rules as the
// dedicated lifecycle operations.
func (s *Service) UpdateStatus(ctx context.Context, id string, status commission.Status, actor audit.Actor, notes string) (commission.Commission, error) {
	return s.transition(ctx, id, status, actor, notes)
}

// actionFor maps a target status to the audit action recorded for it.
func actionFor(to commission.Status) audit.Action {
	switch to {
	case commission.StatusApproved:
		return audit.ActionApproved
	case commission.StatusCancelled:
		return audit.ActionRejected
	case commission.StatusPaid:
		return audit.ActionPaid
	default:
		return audit.ActionUpdated
	}
}

func (s *Service) transition(ctx context.Context, id string, to commission.Status, actor audit.Actor, notes string) (commission.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findCommission(id)
	if i < 0 {
		return commission.Commission{}, fmt.Errorf("%w: %s", ErrCommissionNotFound, id)
	}
	cur := s.commissions[i]
	next, err := cur.Transition(to, s.now())
	if err != nil {
		metrics.RecordTransitionRejected(string(cur.Status), string(to))
		s.logger.Warn(ctx, "rejected status transition",
			logger.String("commissionID", id),
			logger.String("from", string(cur.Status)),
			logger.String("to", string(to)),
		)
		return commission.Commission{}, err
	}

	newValue := map[string]any{"status": next.Status}
	if next.PaidDate != nil {
		newValue["paid_date"] = next.PaidDate
	}

	t := s.begin()
	t.putCommission(next)
	t.audit(audit.Entry{
		SubjectID:     next.ID,
		DealID:        next.DealID,
		Scope:         audit.ScopeCommission,
		UserID:        actor.ID,
		UserName:      actor.Name,
		Action:        actionFor(to),
		PreviousValue: audit.Snapshot(map[string]any{"status": cur.Status}),
		NewValue:      audit.Snapshot(newValue),
		Notes:         notes,
	})
	if err := t.commit(ctx); err != nil {
		return commission.Commission{}, err
	}

	metrics.RecordTransition(string(cur.Status), string(next.Status))
	s.logger.Info(ctx, "commission status changed",
		logger.String("commissionID", id),
		logger.String("from", string(cur.Status)),
		logger.String("to", string(next.Status)),
		logger.String("actor", actor.ID),
	)
	return next.Clone(), nil
}

// UpdateCommission applies patch to commission id.
func (s *Service) UpdateCommission(ctx context.Context, id string, patch CommissionPatch, actor audit.Actor) (commission.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findCommission(id)
	if i < 0 {
		return commission.Commission{}, fmt.Errorf("%w: %s", ErrCommissionNotFound, id)
	}
	cur := s.commissions[i]
	if patch.Notes == nil || *patch.Notes == cur.Notes {
		return cur.Clone(), nil
	}
	next := cur.Clone()
	next.Notes = *patch.Notes
	next.UpdatedAt = s.now()

	t := s.begin()
	t.putCommission(next)
	t.audit(audit.Entry{
		SubjectID:     next.ID,
		DealID:        next.DealID,
		Scope:         audit.ScopeCommission,
		UserID:        actor.ID,
		UserName:      actor.Name,
		Action:        audit.ActionUpdated,
		PreviousValue: audit.Snapshot(map[string]any{"notes": cur.Notes}),
		NewValue:      audit.Snapshot(map[string]any{"notes": next.Notes}),
	})
	if err := t.commit(ctx); err != nil {
		return commission.Commission{}, err
	}
	return next.Clone(), nil
}

// GetCommission returns the commission with id.
func (s *Service) GetCommission(_ context.Context, id string) (commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.findCommission(id)
	if i < 0 {
		return commission.Commission{}, fmt.Errorf("%w: %s", ErrCommissionNotFound, id)
	}
	return s.commissions[i].Clone(), nil
}

// ListCommissions returns the commissions matching f, newest first.
func (s *Service) ListCommissions(_ context.Context, f report.Filter) []commission.Commission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterLocked(f)
}

func (s *Service) filterLocked(f report.Filter) []commission.Commission {
	out := make([]commission.Commission, 0, len(s.commissions))
	for i := len(s.commissions) - 1; i >= 0; i-- {
		if c := s.commissions[i]; f.Match(c) {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Summary totals the commissions matching f.
func (s *Service) Summary(_ context.Context, f report.Filter) report.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return report.Summarize(s.filterLocked(f))
}
