package api

import (
	"net/http"

	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/shopspring/decimal"
)

// ruleRequest mirrors the body of POST /rules. Rules are active unless
// is_active is false.
type ruleRequest struct {
	Name      string          `json:"name" validate:"required"`
	Type      rule.Kind       `json:"type" validate:"required"`
	IsActive  *bool           `json:"is_active"`
	AppliesTo []string        `json:"applies_to"`
	Amount    decimal.Decimal `json:"amount"`
	Rate      decimal.Decimal `json:"rate"`
	Tiers     []rule.Tier     `json:"tiers"`
}

func (req ruleRequest) toRule() rule.Rule {
	return rule.Rule{
		Name:      req.Name,
		Kind:      req.Type,
		IsActive:  req.IsActive == nil || *req.IsActive,
		AppliesTo: req.AppliesTo,
		Amount:    req.Amount,
		Rate:      req.Rate,
		Tiers:     req.Tiers,
	}
}

// RulesHandler serves /rules.
type RulesHandler struct {
	deps RuleDependencies
	errs *errorWriter
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps RuleDependencies, errs *errorWriter) *RulesHandler {
	return &RulesHandler{deps: deps, errs: errs}
}

// HandleList handles GET /rules.
func (h *RulesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.ListRules(r.Context()))
}

// HandleGet handles GET /rules/{id}.
func (h *RulesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	got, err := h.deps.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errs.write(w, r, "api.get_rule", err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

// HandleCreate handles POST /rules.
func (h *RulesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_rule"
	var req ruleRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	created, err := h.deps.CreateRule(r.Context(), req.toRule(), actorFrom(r))
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate handles PATCH /rules/{id}.
func (h *RulesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_rule"
	var patch service.RulePatch
	if err := decode(r, op, &patch); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	updated, err := h.deps.UpdateRule(r.Context(), r.PathValue("id"), patch, actorFrom(r))
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /rules/{id}.
func (h *RulesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRule(r.Context(), r.PathValue("id"), actorFrom(r)); err != nil {
		h.errs.write(w, r, "api.delete_rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDuplicate handles POST /rules/{id}/duplicate.
func (h *RulesHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	dup, err := h.deps.DuplicateRule(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.errs.write(w, r, "api.duplicate_rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}
