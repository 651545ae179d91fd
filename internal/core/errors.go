package core

import "fmt"

// Standard error codes used in payorch error responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeValidationError = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeMissingField    = "missing_required_field"
)

// OrchError is the structured error used across the service. Internal errors
// carry a human-readable explanation of which step failed (serialize, read,
// write, publish) so callers can diagnose without log correlation.
type OrchError struct {
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *OrchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewInvalidRequestError(message string, details map[string]any) *OrchError {
	return &OrchError{
		Code:      ErrCodeInvalidRequest,
		Message:   message,
		Retryable: false,
		Details:   details,
	}
}

// NewValidationError reports a routing-configuration validation failure. These
// are user-facing and never retried.
func NewValidationError(message string, details map[string]any) *OrchError {
	return &OrchError{
		Code:      ErrCodeValidationError,
		Message:   message,
		Retryable: false,
		Details:   details,
	}
}

func NewNotFoundError(resourceType, resourceID string) *OrchError {
	return &OrchError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s '%s' not found.", resourceType, resourceID),
		Retryable: false,
		Details: map[string]any{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		},
	}
}

// NewInternalError wraps a storage or serialization failure. The message names
// the step that failed.
func NewInternalError(step string, cause error) *OrchError {
	msg := step
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", step, cause)
	}
	return &OrchError{
		Code:      ErrCodeInternalError,
		Message:   msg,
		Retryable: true,
	}
}

func NewMissingFieldError(field string) *OrchError {
	return &OrchError{
		Code:      ErrCodeMissingField,
		Message:   fmt.Sprintf("Missing required field '%s'.", field),
		Retryable: false,
		Details:   map[string]any{"field": field},
	}
}

// ErrorResponse is the connector-facing error vocabulary: the classification
// of a failed connector call, surfaced alongside AttemptStatus.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("connector error %s (%d): %s", e.Code, e.StatusCode, e.Message)
}
