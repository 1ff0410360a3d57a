package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status            int
	Code              string `json:"code" doc:"Machine-readable error code"`
	Message           string `json:"message" doc:"Human-readable error message"`
	Details           any    `json:"details,omitempty" doc:"Per-field validation errors"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty" doc:"Seconds to wait before retrying"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		// Prefer a domain error when one is in the list.
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return fromDomain(domainErr)
			}
		}

		// Fall back to a plain error for huma's own failures.
		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
	}
}

func fromDomain(e *domainerrors.Error) *APIError {
	apiErr := &APIError{
		status:  e.HTTPStatus(),
		Code:    string(e.Code),
		Message: domainerrors.UserMessage(e),
	}

	// Field errors describe the caller's own input. Everything else may
	// carry raw provider payloads, which stay in the logs.
	if e.Code == domainerrors.CodeValidation {
		apiErr.Details = e.Details
	}

	// Whole seconds, rounded up so clients never retry early.
	apiErr.RetryAfterSeconds = seconds(e.RetryAfter)
	return apiErr
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusConflict:
		return string(domainerrors.CodeSyncInProgress)
	default:
		return string(domainerrors.CodeInternal)
	}
}
