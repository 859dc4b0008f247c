package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced to the calling boundary.
type ErrorKind string

const (
	KindValidation       ErrorKind = "VALIDATION_ERROR"
	KindDataInsufficient ErrorKind = "DATA_INSUFFICIENT"
	KindInfeasible       ErrorKind = "INFEASIBLE_CONSTRAINTS"
	KindSolver           ErrorKind = "SOLVER_ERROR"
)

// Error is a structured failure carrying a kind, a client-safe message and
// optional details that let the caller adjust its inputs.
type Error struct {
	Kind    ErrorKind      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the Err* sentinels below
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// WithDetail returns e after attaching a detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Kind sentinels for errors.Is.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrDataInsufficient      = &Error{Kind: KindDataInsufficient}
	ErrInfeasibleConstraints = &Error{Kind: KindInfeasible}
	ErrSolver                = &Error{Kind: KindSolver}
)

// ErrInvalidRiskLevel is wrapped by validation errors for unknown risk tokens.
var ErrInvalidRiskLevel = errors.New("invalid risk level")

// NewValidationError builds a client-input error. cause may be nil.
func NewValidationError(cause error, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: cause}
}

// NewDataInsufficientError reports that too little price history was usable.
func NewDataInsufficientError(message string) *Error {
	return &Error{Kind: KindDataInsufficient, Message: message}
}

// NewInfeasibleError reports conflicting bounds.
func NewInfeasibleError(message string) *Error {
	return &Error{Kind: KindInfeasible, Message: message}
}

// NewSolverError reports a numerical failure.
func NewSolverError(cause error, message string) *Error {
	return &Error{Kind: KindSolver, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindDataInsufficient, KindInfeasible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
