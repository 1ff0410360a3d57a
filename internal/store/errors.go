package store

import "github.com/vaultmark/vaultmark/internal/errors"

// Sentinel errors.
var (
	ErrNotFound = errors.NotFound("record not found")
)
