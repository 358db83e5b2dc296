// Package errors defines the API-visible error taxonomy for the settlement
// engine. Service packages keep their own sentinel errors; DomainError is
// what crosses the handler boundary.
package errors

import "fmt"

// Error codes returned to API clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeStateConflict     = "STATE_CONFLICT"
	CodeDeadlockExhausted = "DEADLOCK_EXHAUSTED"
	CodeGatewayFailed     = "GATEWAY_FAILED"
	CodeDuplicateEvent    = "DUPLICATE_EVENT"
)

// DomainError is a business-rule failure with a stable machine code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation builds a VALIDATION_FAILED error.
func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// StateConflict builds a STATE_CONFLICT error.
func StateConflict(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeStateConflict, Message: fmt.Sprintf(format, args...)}
}
