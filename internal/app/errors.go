package service

import "errors"

// Sentinel errors returned by Service operations. Callers match them with
// errors.Is; domain errors (rule.ErrValidation, commission.ErrInvalidTransition,
// evaluator.ErrNegativeAmount, repository.ErrPersist) pass through wrapped.
var (
	ErrRuleNotFound        = errors.New("rule not found")
	ErrCommissionNotFound  = errors.New("commission not found")
	ErrEntryNotFound       = errors.New("audit entry not found")
	ErrSubjectNotFound     = errors.New("audit subject not found")
	ErrDuplicateCommission = errors.New("commission already exists for deal and rule")
	ErrRuleInactive        = errors.New("rule is inactive")
	ErrRuleNotApplicable   = errors.New("rule does not apply to deal category")
	ErrNotPermitted        = errors.New("operation not permitted for actor")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotStarted          = errors.New("service not started")
)
