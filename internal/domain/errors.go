package domain

import (
	"errors"
	"fmt"
	"time"
)

// Lookup and workflow errors
var (
	ErrNotFound        = errors.New("not found")
	ErrTestNotFound    = errors.New("test not found in catalog")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidCatalog  = errors.New("invalid test catalog")
	ErrEmptySelection  = errors.New("no tests selected")
)

// AdvisorError represents a standardized error response
type AdvisorError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *AdvisorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeEmptySelection  = "EMPTY_SELECTION"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodePassSuperseded  = "PASS_SUPERSEDED"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAdvisorError creates a new AdvisorError with timestamp
func NewAdvisorError(code, message, details, requestID string) *AdvisorError {
	return &AdvisorError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an error returned by the advisor to the response code used
// by the HTTP and MCP surfaces.
func ErrorCode(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return ErrCodeValidation
	case errors.Is(err, ErrSessionNotFound):
		return ErrCodeSessionNotFound
	case errors.Is(err, ErrTestNotFound), errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrEmptySelection):
		return ErrCodeEmptySelection
	default:
		return ErrCodeInternalServer
	}
}
