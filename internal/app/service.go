// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	repository "github.com/okian/commission/internal/adapters/repository"
	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/okian/commission/pkg/logger"
	"github.com/okian/commission/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Service owns the rule and commission collections and the audit trail.
// Every mutation runs read-validate-mutate-persist under one writer lock,
// so transitions on the same commission never interleave and a failed save
// leaves both memory and the store unchanged.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store  repository.Store
	now    func() time.Time
	newID  func() string
	logger logger.Logger

	// State
	rules       []rule.Rule
	commissions []commission.Commission
	log         *audit.Log
	started     bool
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.log = s.newLog(nil)
	return s
}

func (s *Service) newLog(entries []audit.Entry) *audit.Log {
	return audit.NewLog(entries, audit.WithClock(s.now), audit.WithIDGenerator(s.newID))
}

// Start loads the persisted collections. Mutations fail with ErrNotStarted
// until Start has succeeded.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting commission service...")

	rules, err := repository.LoadOrDefault[rule.Rule](ctx, s.store, repository.KeyRules, nil)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	comms, err := repository.LoadOrDefault[commission.Commission](ctx, s.store, repository.KeyCommissions, nil)
	if err != nil {
		return fmt.Errorf("load commissions: %w", err)
	}
	entries, err := repository.LoadOrDefault[audit.Entry](ctx, s.store, repository.KeyAudit, nil)
	if err != nil {
		return fmt.Errorf("load audit trail: %w", err)
	}

	s.rules = rules
	s.commissions = comms
	s.log = s.newLog(entries)
	s.started = true
	s.refreshGauges()

	s.logger.Info(ctx, "commission service started",
		logger.Int("rules", len(s.rules)),
		logger.Int("commissions", len(s.commissions)),
		logger.Int("auditEntries", s.log.Len()),
	)
	return nil
}

// Stop marks the service stopped and closes the store when it supports it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping commission service...")

	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "commission service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(commission.Statuses))
	for _, c := range s.commissions {
		counts[string(c.Status)]++
	}
	return map[string]interface{}{
		"started":            s.started,
		"rules":              len(s.rules),
		"commissions":        len(s.commissions),
		"commissionsByState": counts,
		"auditEntries":       s.log.Len(),
	}
}

// refreshGauges publishes collection sizes. Callers hold s.mu.
func (s *Service) refreshGauges() {
	counts := make(map[commission.Status]int, len(commission.Statuses))
	amounts := make(map[commission.Status]decimal.Decimal, len(commission.Statuses))
	for _, c := range s.commissions {
		counts[c.Status]++
		amounts[c.Status] = amounts[c.Status].Add(c.Amount)
	}
	for _, st := range commission.Statuses {
		metrics.UpdateCommissionStatus(string(st), counts[st], amounts[st].InexactFloat64())
	}
	metrics.UpdateRuleCount(len(s.rules))
	metrics.UpdateAuditEntryCount(s.log.Len())
}

func (s *Service) findRule(id string) int {
	return slices.IndexFunc(s.rules, func(r rule.Rule) bool { return r.ID == id })
}

func (s *Service) findCommission(id string) int {
	return slices.IndexFunc(s.commissions, func(c commission.Commission) bool { return c.ID == id })
}

// tx stages changes on copies of the collections the operation touches.
// Nothing is visible to readers until commit has saved them.
type tx struct {
	s           *Service
	rules       []rule.Rule
	commissions []commission.Commission
	log         *audit.Log
}

func (s *Service) begin() *tx { return &tx{s: s} }

func (t *tx) stagedRules() []rule.Rule {
	if t.rules == nil {
		t.rules = append(make([]rule.Rule, 0, len(t.s.rules)+1), t.s.rules...)
	}
	return t.rules
}

func (t *tx) putRule(r rule.Rule) {
	rules := t.stagedRules()
	if i := slices.IndexFunc(rules, func(x rule.Rule) bool { return x.ID == r.ID }); i >= 0 {
		rules[i] = r
		return
	}
	t.rules = append(rules, r)
}

func (t *tx) removeRule(id string) {
	t.rules = slices.DeleteFunc(t.stagedRules(), func(x rule.Rule) bool { return x.ID == id })
}

func (t *tx) putCommission(c commission.Commission) {
	if t.commissions == nil {
		t.commissions = append(make([]commission.Commission, 0, len(t.s.commissions)+1), t.s.commissions...)
	}
	if i := slices.IndexFunc(t.commissions, func(x commission.Commission) bool { return x.ID == c.ID }); i >= 0 {
		t.commissions[i] = c
		return
	}
	t.commissions = append(t.commissions, c)
}

func (t *tx) staged() *audit.Log {
	if t.log == nil {
		t.log = t.s.log.Clone()
	}
	return t.log
}

func (t *tx) audit(e audit.Entry) audit.Entry {
	return t.staged().Append(e)
}

// commit saves every staged collection in one batch and swaps them in.
func (t *tx) commit(ctx context.Context) error {
	s := t.s
	if !s.started {
		return ErrNotStarted
	}
	batch := repository.Batch{}
	if t.rules != nil {
		batch[repository.KeyRules] = t.rules
	}
	if t.commissions != nil {
		batch[repository.KeyCommissions] = t.commissions
	}
	if t.log != nil {
		batch[repository.KeyAudit] = t.log.Entries()
	}
	if len(batch) == 0 {
		return nil
	}
	if err := s.store.Save(ctx, batch); err != nil {
		metrics.RecordErrorByComponent("service", "persist")
		s.logger.Error(ctx, "failed to persist changes",
			logger.Any("collections", batch.Keys()),
			logger.Error(err),
		)
		return err
	}

	if t.rules != nil {
		s.rules = t.rules
	}
	if t.commissions != nil {
		s.commissions = t.commissions
	}
	if t.log != nil {
		s.log = t.log
	}
	s.refreshGauges()
	return nil
}
