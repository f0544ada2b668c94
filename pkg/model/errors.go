package model

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies an API failure.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR" // malformed input record or body
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrScheduling ErrorCode = "SCHEDULING_ERROR" // the engine rejected the request
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the response status an error code is served with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrScheduling:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// APIError is a structured error returned by the slotwise API. Scheduling
// errors carry the engine's failure kind and, for circular dependencies, the
// task IDs forming the cycle.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Kind    string       `json:"kind,omitempty"`
	Cycle   []string     `json:"cycle,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s (cycle %s)", e.Code, e.Message, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError points at the input field a validation failure concerns.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError rejects an input record, naming the offending fields.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError reports a missing task, schedule or other stored record.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{Code: ErrNotFound, Message: fmt.Sprintf("%s '%s' not found", resource, id)}
}

// NewSchedulingError reports a request the engine refused to schedule.
// kind is the engine's failure kind, such as "circular dependency".
func NewSchedulingError(kind, msg string, cycle []string) *APIError {
	return &APIError{Code: ErrScheduling, Message: msg, Kind: kind, Cycle: cycle}
}
