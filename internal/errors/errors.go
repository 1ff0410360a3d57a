// Package errors provides the domain error taxonomy for vaultmark.
//
// Usage:
//
//	// In components - return typed errors
//	if clientID == "" {
//	    return errors.Config("client id is not configured")
//	}
//
//	// At the scheduler boundary - decide on retry policy by code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeRateLimited:
//	        cooldown = domainErr.RetryAfter
//	    case errors.CodeConfig:
//	        // not retried
//	    }
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeConfig         Code = "CONFIG"
	CodeAuth           Code = "AUTH"
	CodeTokenExchange  Code = "TOKEN_EXCHANGE"
	CodeStateMismatch  Code = "STATE_MISMATCH"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeNetwork        Code = "NETWORK"
	CodeTimeout        Code = "TIMEOUT"
	CodeProcessing     Code = "PROCESSING"
	CodeSyncInProgress Code = "SYNC_IN_PROGRESS"
	CodeCooldown       Code = "COOLDOWN"
	CodeResyncRequired Code = "RESYNC_REQUIRED"
	CodeValidation     Code = "VALIDATION"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInternal       Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConfig, CodeValidation, CodeStateMismatch:
		return http.StatusBadRequest
	case CodeAuth, CodeTokenExchange:
		return http.StatusUnauthorized
	case CodeRateLimited, CodeCooldown:
		return http.StatusTooManyRequests
	case CodeSyncInProgress:
		return http.StatusConflict
	case CodeNetwork, CodeResyncRequired:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the scheduler may retry an attempt that failed
// with this code without user intervention.
func (c Code) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeNetwork, CodeTimeout, CodeResyncRequired, CodeCooldown:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// RetryAfter is the wait the provider (or the gate) asked for.
	RetryAfter time.Duration `json:"-"`
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		RetryAfter: e.RetryAfter,
		cause:      e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		RetryAfter: e.RetryAfter,
		cause:      err,
	}
}

// WithRetryAfter returns a copy carrying a wait duration.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		RetryAfter: d,
		cause:      e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrConfig         = &Error{Code: CodeConfig, Message: "configuration error"}
	ErrAuth           = &Error{Code: CodeAuth, Message: "authentication error"}
	ErrTokenExchange  = &Error{Code: CodeTokenExchange, Message: "token exchange failed"}
	ErrStateMismatch  = &Error{Code: CodeStateMismatch, Message: "authorization state mismatch"}
	ErrRateLimited    = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrNetwork        = &Error{Code: CodeNetwork, Message: "network error"}
	ErrTimeout        = &Error{Code: CodeTimeout, Message: "request timed out"}
	ErrProcessing     = &Error{Code: CodeProcessing, Message: "processing error"}
	ErrSyncInProgress = &Error{Code: CodeSyncInProgress, Message: "sync already in progress"}
	ErrCooldown       = &Error{Code: CodeCooldown, Message: "sync is cooling down"}
	ErrResyncRequired = &Error{Code: CodeResyncRequired, Message: "access token refreshed, please resync"}
	ErrValidation     = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInternal       = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// Config creates a configuration error.
func Config(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}

// Auth creates an authentication error.
func Auth(msg string) *Error {
	return &Error{Code: CodeAuth, Message: msg}
}

// TokenExchange creates a token exchange error carrying the provider payload.
func TokenExchange(msg string, payload any) *Error {
	return &Error{Code: CodeTokenExchange, Message: msg, Details: payload}
}

// StateMismatch creates an authorization state mismatch error.
func StateMismatch(msg string) *Error {
	return &Error{Code: CodeStateMismatch, Message: msg}
}

// RateLimited creates a rate limit error with the wait the caller must honour.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// Network creates a network error.
func Network(msg string) *Error {
	return &Error{Code: CodeNetwork, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *Error {
	return &Error{Code: CodeTimeout, Message: msg}
}

// Processing creates a processing error.
func Processing(msg string) *Error {
	return &Error{Code: CodeProcessing, Message: msg}
}

// SyncInProgress creates a sync in progress error.
func SyncInProgress(msg string) *Error {
	return &Error{Code: CodeSyncInProgress, Message: msg}
}

// Cooldown creates a cooldown error with the remaining wait.
func Cooldown(msg string, remaining time.Duration) *Error {
	return &Error{Code: CodeCooldown, Message: msg, RetryAfter: remaining}
}

// ResyncRequired creates the retryable signal returned after a successful
// token refresh.
func ResyncRequired(msg string) *Error {
	return &Error{Code: CodeResyncRequired, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Transport classifies a failed round trip as TIMEOUT or NETWORK.
func Transport(err error, msg string) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Wrap(err, CodeTimeout, msg+" timed out")
	}
	return Wrap(err, CodeNetwork, msg+" failed")
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailsOf returns the details of the first *Error in err's chain.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// RetryAfterOf returns the wait embedded in err's chain, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// UserMessage renders err for an end user. Provider payloads and causes
// stay in the logs.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Sync failed due to an unexpected error. Check the logs for details."
	}

	switch e.Code {
	case CodeRateLimited, CodeCooldown:
		return fmt.Sprintf("%s. Try again in %s.", e.Message, FormatWait(e.RetryAfter))
	case CodeAuth, CodeTokenExchange:
		return e.Message + ". Reconnect your account in settings."
	case CodeNetwork, CodeTimeout:
		return e.Message + ". Check your connection; sync will retry."
	default:
		return e.Message
	}
}

// FormatWait renders a wait duration in whole minutes, or seconds when
// under a minute.
func FormatWait(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	if d < time.Minute {
		secs := int(d.Round(time.Second) / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
