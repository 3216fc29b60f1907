// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/commission"
	"github.com/okian/commission/internal/domain/evaluator"
	"github.com/okian/commission/internal/domain/report"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/okian/commission/pkg/logger"
	"github.com/shopspring/decimal"
)

// Actor headers. Identity is accepted as supplied.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RuleDependencies
	CommissionDependencies
	AuditDependencies
}

// RuleDependencies covers the rule repository.
type RuleDependencies interface {
	ListRules(ctx context.Context) []rule.Rule
	GetRule(ctx context.Context, id string) (rule.Rule, error)
	CreateRule(ctx context.Context, r rule.Rule, actor audit.Actor) (rule.Rule, error)
	UpdateRule(ctx context.Context, id string, patch service.RulePatch, actor audit.Actor) (rule.Rule, error)
	DeleteRule(ctx context.Context, id string, actor audit.Actor) error
	DuplicateRule(ctx context.Context, id string, actor audit.Actor) (rule.Rule, error)
}

// CommissionDependencies covers evaluation, the commission lifecycle and reporting.
type CommissionDependencies interface {
	Evaluate(ctx context.Context, ruleID string, dealAmount decimal.Decimal) (evaluator.Result, error)
	CreateCommission(ctx context.Context, in service.CreateCommissionInput, actor audit.Actor) (commission.Commission, error)
	GetCommission(ctx context.Context, id string) (commission.Commission, error)
	ListCommissions(ctx context.Context, f report.Filter) []commission.Commission
	UpdateCommission(ctx context.Context, id string, patch service.CommissionPatch, actor audit.Actor) (commission.Commission, error)
	Approve(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error)
	Reject(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error)
	MarkPaid(ctx context.Context, id string, actor audit.Actor, notes string) (commission.Commission, error)
	UpdateStatus(ctx context.Context, id string, status commission.Status, actor audit.Actor, notes string) (commission.Commission, error)
	Summary(ctx context.Context, f report.Filter) report.Summary
}

// AuditDependencies covers the audit trail.
type AuditDependencies interface {
	ListAudit(ctx context.Context, subjectID string) []audit.Entry
	AddNote(ctx context.Context, subjectID string, actor audit.Actor, notes string) (audit.Entry, error)
	UpdateAuditNotes(ctx context.Context, id, notes string, actor audit.Actor) (audit.Entry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	rulesHandler      *RulesHandler
	commissionHandler *CommissionsHandler
	auditHandler      *AuditHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	e := &errorWriter{logger: log}
	return &Server{
		healthHandler:     NewHealthHandler(statsProvider),
		statsHandler:      NewStatsHandler(statsProvider),
		rulesHandler:      NewRulesHandler(deps, e),
		commissionHandler: NewCommissionsHandler(deps, e),
		auditHandler:      NewAuditHandler(deps, e),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	rh := s.rulesHandler
	mux.HandleFunc("GET /rules", MetricsMiddleware(rh.HandleList, "rules"))
	mux.HandleFunc("POST /rules", MetricsMiddleware(rh.HandleCreate, "rules"))
	mux.HandleFunc("GET /rules/{id}", MetricsMiddleware(rh.HandleGet, "rule"))
	mux.HandleFunc("PATCH /rules/{id}", MetricsMiddleware(rh.HandleUpdate, "rule"))
	mux.HandleFunc("DELETE /rules/{id}", MetricsMiddleware(rh.HandleDelete, "rule"))
	mux.HandleFunc("POST /rules/{id}/duplicate", MetricsMiddleware(rh.HandleDuplicate, "rule_duplicate"))

	ch := s.commissionHandler
	mux.HandleFunc("POST /evaluate", MetricsMiddleware(ch.HandleEvaluate, "evaluate"))
	mux.HandleFunc("GET /commissions", MetricsMiddleware(ch.HandleList, "commissions"))
	mux.HandleFunc("POST /commissions", MetricsMiddleware(ch.HandleCreate, "commissions"))
	mux.HandleFunc("GET /commissions/{id}", MetricsMiddleware(ch.HandleGet, "commission"))
	mux.HandleFunc("PATCH /commissions/{id}", MetricsMiddleware(ch.HandleUpdate, "commission"))
	mux.HandleFunc("POST /commissions/{id}/approve", MetricsMiddleware(ch.HandleApprove, "commission_approve"))
	mux.HandleFunc("POST /commissions/{id}/reject", MetricsMiddleware(ch.HandleReject, "commission_reject"))
	mux.HandleFunc("POST /commissions/{id}/pay", MetricsMiddleware(ch.HandlePay, "commission_pay"))
	mux.HandleFunc("POST /commissions/{id}/status", MetricsMiddleware(ch.HandleStatus, "commission_status"))
	mux.HandleFunc("GET /summary", MetricsMiddleware(ch.HandleSummary, "summary"))

	ah := s.auditHandler
	mux.HandleFunc("GET /audit/{subjectID}", MetricsMiddleware(ah.HandleList, "audit"))
	mux.HandleFunc("PATCH /audit/entries/{id}/notes", MetricsMiddleware(ah.HandleUpdateNotes, "audit_notes"))
	mux.HandleFunc("POST /notes", MetricsMiddleware(ah.HandleAddNote, "notes"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// errorWriter translates service errors into HTTP responses.
type errorWriter struct {
	logger logger.Logger
}

func (e *errorWriter) write(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= statusInternalError {
		e.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, status, code, NewKind(op, ErrInternal))
		return
	}
	writeError(w, status, code, err)
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, rule.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, evaluator.ErrNegativeAmount):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrRuleNotFound),
		errors.Is(err, service.ErrCommissionNotFound),
		errors.Is(err, service.ErrEntryNotFound),
		errors.Is(err, service.ErrSubjectNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, commission.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrDuplicateCommission),
		errors.Is(err, service.ErrRuleInactive),
		errors.Is(err, service.ErrRuleNotApplicable):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrNotPermitted):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// actorFrom reads the caller identity headers, defaulting to the system actor.
func actorFrom(r *http.Request) audit.Actor {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return audit.System
	}
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = id
	}
	return audit.Actor{ID: id, Name: name}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// decode reads a JSON body into dst and validates its struct tags. An
// empty body leaves dst at its zero value.
func decode(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return WrapKind(op, ErrBadRequest, err)
	}
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return WrapKind(op, ErrBadRequest, fmt.Errorf("%s failed on %s", verrs[0].Field(), verrs[0].Tag()))
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
