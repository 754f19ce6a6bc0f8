package api

import "fmt"

// ErrorType represents the category of a gateway error.
type ErrorType string

const (
	ErrorTypeBadRequest         ErrorType = "bad_request"
	ErrorTypeUnauthenticated    ErrorType = "unauthenticated"
	ErrorTypeTokenExpired       ErrorType = "token_expired"
	ErrorTypeTokenMalformed     ErrorType = "token_malformed"
	ErrorTypeUnknownEngine      ErrorType = "unknown_engine"
	ErrorTypeRateLimited        ErrorType = "rate_limited"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeInternal           ErrorType = "internal_error"
)

// APIError is a structured gateway error with a type, an optional offending
// parameter, and a human-readable message.
type APIError struct {
	Type    ErrorType `json:"error_type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"error"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON envelope for failures.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   string    `json:"error"`
	Type    ErrorType `json:"error_type,omitempty"`
	Param   string    `json:"param,omitempty"`
}

// Envelope wraps an APIError into the failure response envelope.
func (e *APIError) Envelope() ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   e.Message,
		Type:    e.Type,
		Param:   e.Param,
	}
}

// NewBadRequestError creates an APIError for malformed or incomplete input.
func NewBadRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeBadRequest,
		Param:   param,
		Message: message,
	}
}

// NewUnauthenticatedError creates an APIError for missing or rejected credentials.
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthenticated,
		Message: message,
	}
}

// NewTokenExpiredError creates an APIError for tokens past their expiry.
func NewTokenExpiredError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTokenExpired,
		Message: message,
	}
}

// NewTokenMalformedError creates an APIError for tokens that cannot be parsed.
func NewTokenMalformedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTokenMalformed,
		Message: message,
	}
}

// NewUnknownEngineError creates an APIError for an unregistered engine name.
func NewUnknownEngineError(name string, available []string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnknownEngine,
		Param:   "engine",
		Message: fmt.Sprintf("unknown engine %q (available: %v)", name, available),
	}
}

// NewRateLimitedError creates an APIError for requests rejected by the
// per-user rate limiter.
func NewRateLimitedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeRateLimited,
		Message: message,
	}
}

// NewBackendUnavailableError creates an APIError for backend calls that
// failed after all retry attempts were exhausted.
func NewBackendUnavailableError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeBackendUnavailable,
		Message: message,
	}
}

// NewInternalError creates an APIError for unexpected failures. Callers
// should pass a generic message; internal detail belongs in the log.
func NewInternalError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// Retryable reports whether the error category may be retried against the
// backend. Validation and authentication failures are never retried.
func (e *APIError) Retryable() bool {
	return e.Type == ErrorTypeBackendUnavailable
}
