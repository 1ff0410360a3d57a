package xapi

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for provider API operations.
var (
	ErrUnauthorized = errors.New("xapi: access token rejected")
	ErrRateLimited  = errors.New("xapi: rate limited by server")
	ErrBadRequest   = errors.New("xapi: bad request")
	ErrServer       = errors.New("xapi: server error")
	ErrTimeout      = errors.New("xapi: request timed out")
	ErrNetwork      = errors.New("xapi: network failure")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // Operation: "me", "bookmarks"
	Status int    // HTTP status, zero when no response arrived
	// RetryAfter is the wait the server asked for on a 429, if it said.
	RetryAfter time.Duration
	// Detail is the provider's error text, kept for logs.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("xapi %s [%d]: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("xapi %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op string, status int, err error) *Error {
	return &Error{
		Op:     op,
		Status: status,
		Err:    err,
	}
}
