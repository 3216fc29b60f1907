// Package report aggregates commissions into totals for reporting callers.
package report

import (
	"time"

	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
)

// Filter narrows a commission listing. Zero fields match everything; From
// and To bound CreatedAt inclusively.
type Filter struct {
	Status        commission.Status
	SalesPersonID string
	DealID        string
	RuleKind      rule.Kind
	From          time.Time
	To            time.Time
}

// Match reports whether c passes the filter.
func (f Filter) Match(c commission.Commission) bool {
	switch {
	case f.Status != "" && c.Status != f.Status:
		return false
	case f.SalesPersonID != "" && c.SalesPersonID != f.SalesPersonID:
		return false
	case f.DealID != "" && c.DealID != f.DealID:
		return false
	case f.RuleKind != "" && c.RuleKind != f.RuleKind:
		return false
	case !f.From.IsZero() && c.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && c.CreatedAt.After(f.To):
		return false
	}
	return true
}

// Summary holds amounts and counts grouped by status and rule kind.
type Summary struct {
	Count           int                           `json:"count"`
	TotalAmount     decimal.Decimal               `json:"total_amount"`
	PendingAmount   decimal.Decimal               `json:"pending_amount"`
	ApprovedAmount  decimal.Decimal               `json:"approved_amount"`
	PaidAmount      decimal.Decimal               `json:"paid_amount"`
	CancelledAmount decimal.Decimal               `json:"cancelled_amount"`
	CountByStatus   map[commission.Status]int     `json:"count_by_status"`
	AmountByKind    map[rule.Kind]decimal.Decimal `json:"amount_by_type"`
}

// Summarize totals the given commissions. Cancelled commissions are counted
// but excluded from TotalAmount.
func Summarize(items []commission.Commission) Summary {
	s := Summary{
		CountByStatus: make(map[commission.Status]int, len(commission.Statuses)),
		AmountByKind:  make(map[rule.Kind]decimal.Decimal),
	}
	for _, st := range commission.Statuses {
		s.CountByStatus[st] = 0
	}
	for _, c := range items {
		s.Count++
		s.CountByStatus[c.Status]++
		switch c.Status {
		case commission.StatusPending:
			s.PendingAmount = s.PendingAmount.Add(c.Amount)
		case commission.StatusApproved:
			s.ApprovedAmount = s.ApprovedAmount.Add(c.Amount)
		case commission.StatusPaid:
			s.PaidAmount = s.PaidAmount.Add(c.Amount)
		case commission.StatusCancelled:
			s.CancelledAmount = s.CancelledAmount.Add(c.Amount)
			continue
		}
		s.TotalAmount = s.TotalAmount.Add(c.Amount)
		s.AmountByKind[c.RuleKind] = s.AmountByKind[c.RuleKind].Add(c.Amount)
	}
	return s
}
