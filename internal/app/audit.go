package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/pkg/logger"
)

// ListAudit returns the trail of a commission, deal or rule, newest first.
func (s *Service) ListAudit(_ context.Context, subjectID string) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.log.ListBySubject(subjectID)
}

// GetAuditEntry returns the entry with id.
func (s *Service) GetAuditEntry(_ context.Context, id string) (audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.log.Get(id)
	if !ok {
		return audit.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return e, nil
}

// AddNote appends a manual_note entry to the trail of subjectID, which may
// be a commission, a deal with commissions, or a rule.
func (s *Service) AddNote(ctx context.Context, subjectID string, actor audit.Actor, notes string) (audit.Entry, error) {
	if strings.TrimSpace(notes) == "" {
		return audit.Entry{}, fmt.Errorf("%w: notes must not be empty", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := audit.Entry{
		SubjectID: subjectID,
		UserID:    actor.ID,
		UserName:  actor.Name,
		Action:    audit.ActionManualNote,
		Notes:     notes,
	}
	switch {
	case s.findCommission(subjectID) >= 0:
		e.Scope = audit.ScopeCommission
		e.DealID = s.commissions[s.findCommission(subjectID)].DealID
	case s.hasDeal(subjectID):
		e.Scope = audit.ScopeCommission
		e.DealID = subjectID
	case s.findRule(subjectID) >= 0:
		e.Scope = audit.ScopeSystem
	default:
		return audit.Entry{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}

	t := s.begin()
	e = t.audit(e)
	if err := t.commit(ctx); err != nil {
		return audit.Entry{}, err
	}
	s.logger.Info(ctx, "note added",
		logger.String("subjectID", subjectID),
		logger.String("entryID", e.ID),
		logger.String("actor", actor.ID),
	)
	return e, nil
}

func (s *Service) hasDeal(dealID string) bool {
	for _, c := range s.commissions {
		if c.DealID == dealID {
			return true
		}
	}
	return false
}

// UpdateAuditNotes replaces the notes of entry id. Only manual notes, or
// entries written by the same actor, may be edited.
func (s *Service) UpdateAuditNotes(ctx context.Context, id, notes string, actor audit.Actor) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.log.Get(id)
	if !ok {
		return audit.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if cur.Action != audit.ActionManualNote && cur.UserID != actor.ID {
		return audit.Entry{}, fmt.Errorf("%w: %s may not edit entry %s", ErrNotPermitted, actor.ID, id)
	}

	t := s.begin()
	updated, _ := t.staged().UpdateNotes(id, notes)
	if err := t.commit(ctx); err != nil {
		return audit.Entry{}, err
	}
	s.logger.Info(ctx, "audit notes updated",
		logger.String("entryID", id),
		logger.String("actor", actor.ID),
	)
	return updated, nil
}
