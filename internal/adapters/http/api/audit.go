package api

import (
	"net/http"

	"github.com/okian/commission/internal/domain/audit"
)

type noteRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Notes     string `json:"notes" validate:"required"`
}

type notesUpdateRequest struct {
	Notes string `json:"notes"`
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	deps AuditDependencies
	errs *errorWriter
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps AuditDependencies, errs *errorWriter) *AuditHandler {
	return &AuditHandler{deps: deps, errs: errs}
}

// HandleList handles GET /audit/{subjectID}. The subject may be a
// commission, deal or rule id; entries come newest first.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.deps.ListAudit(r.Context(), r.PathValue("subjectID"))
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleAddNote handles POST /notes.
func (h *AuditHandler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_note"
	var req noteRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	e, err := h.deps.AddNote(r.Context(), req.SubjectID, actorFrom(r), req.Notes)
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleUpdateNotes handles PATCH /audit/entries/{id}/notes.
func (h *AuditHandler) HandleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_audit_notes"
	var req notesUpdateRequest
	if err := decode(r, op, &req); err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	e, err := h.deps.UpdateAuditNotes(r.Context(), r.PathValue("id"), req.Notes, actorFrom(r))
	if err != nil {
		h.errs.write(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
