package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/report"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
)

type evaluateRequest struct {
	RuleID     string          `json:"rule_id" validate:"required"`
	DealAmount decimal.Decimal `json:"deal_amount"`
}

type transitionRequest struct {
	Notes string `json:"notes"`
}

type statusRequest struct {
	Status commission.Status `json:"status" validate:"required,oneof=PENDING APPROVED PAID CANCELLED"`
	Notes  string            `json:"notes"`
}

// CommissionsHandler serves evaluation, the commission lifecycle and summaries.
type CommissionsHandler struct {
	deps CommissionDependencies
	errs *errorWriter
}

// NewCommissionsHandler creates a new commissions handler.
func NewCommissionsHandler(deps CommissionDependencies, errs *errorWriter) *CommissionsHandler {
	return &CommissionsHandler{deps: deps, errs: errs}
}

// HandleEvaluate handles POST /evaluate.
func (h *CommissionsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	var req evaluateRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), req.RuleID, req.DealAmount)
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreate handles POST /commissions.
func (h *CommissionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_commission"
	var req service.CreateCommissionInput
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	c, err := h.deps.CreateCommission(r.Context(), req, actorFrom(r))
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleList handles GET /commissions.
func (h *CommissionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_commissions"
	f, err := parseFilter(r)
	if err != nil {
		h.errs.write(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ListCommissions(r.Context(), f))
}

// HandleGet handles GET /commissions/{id}.
func (h *CommissionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.GetCommission(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errs.write(w, r, "api.get_commission", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleUpdate handles PATCH /commissions/{id}.
func (h *CommissionsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_commission"
	var patch service.CommissionPatch
	if err := decode(r, op, &patch); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	c, err := h.deps.UpdateCommission(r.Context(), r.PathValue("id"), patch, actorFrom(r))
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleApprove handles POST /commissions/{id}/approve.
func (h *CommissionsHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.approve", h.deps.Approve)
}

// HandleReject handles POST /commissions/{id}/reject.
func (h *CommissionsHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.reject", h.deps.Reject)
}

// HandlePay handles POST /commissions/{id}/pay.
func (h *CommissionsHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.pay", h.deps.MarkPaid)
}

type transitionFunc func(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error)

func (h *CommissionsHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	var req transitionRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	c, err := fn(r.Context(), r.PathValue("id"), actorFrom(r), req.Notes)
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleStatus handles POST /commissions/{id}/status.
func (h *CommissionsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_status"
	var req statusRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	c, err := h.deps.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, actorFrom(r), req.Notes)
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleSummary handles GET /summary.
func (h *CommissionsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.summary"
	f, err := parseFilter(r)
	if err != nil {
		h.errs.write(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Summary(r.Context(), f))
}

// parseFilter reads status, sales_person_id, deal_id, type, from and to
// query parameters. Dates are RFC3339.
func parseFilter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	f := report.Filter{
		Status:        commission.Status(q.Get("status")),
		SalesPersonID: q.Get("sales_person_id"),
		DealID:        q.Get("deal_id"),
		RuleKind:      rule.Kind(q.Get("type")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return report.Filter{}, fmt.Errorf("unknown status %q", f.Status)
	}
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		return report.Filter{}, fmt.Errorf("invalid from; must be RFC3339")
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		return report.Filter{}, fmt.Errorf("invalid to; must be RFC3339")
	}
	return f, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
