// Package commission models a computed payout and its approval lifecycle.
package commission

import (
	"fmt"
	"time"

	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
)

// Status is a lifecycle state.
type Status string

// Lifecycle states. Paid and Cancelled are terminal.
const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusPaid, StatusCancelled}

// transitions is the complete set of legal moves.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusPaid},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusPaid || s == StatusCancelled }

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Commission is a payout owed to one sales person for one deal. The rule
// kind and rate are snapshotted so later rule edits never change history.
type Commission struct {
	ID            string          `json:"id"`
	DealID        string          `json:"deal_id"`
	SalesPersonID string          `json:"sales_person_id"`
	RuleID        string          `json:"rule_id"`
	RuleKind      rule.Kind       `json:"type"`
	Rate          decimal.Decimal `json:"rate"`
	IsPercentage  bool            `json:"is_percentage"`
	DealAmount    decimal.Decimal `json:"deal_amount"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with c.
func (c Commission) Clone() Commission {
	out := c
	if c.PaidDate != nil {
		p := *c.PaidDate
		out.PaidDate = &p
	}
	return out
}

// Transition returns the commission moved to status to at time at. The
// receiver is never modified; an illegal move returns ErrInvalidTransition.
func (c Commission) Transition(to Status, at time.Time) (Commission, error) {
	if !to.Valid() {
		return c, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(c.Status, to) {
		return c, &TransitionError{ID: c.ID, From: c.Status, To: to}
	}
	next := c.Clone()
	next.Status = to
	next.UpdatedAt = at
	if to == StatusPaid {
		paid := at
		next.PaidDate = &paid
	}
	return next, nil
}
