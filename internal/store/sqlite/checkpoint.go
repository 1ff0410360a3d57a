package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetLedgerCheckpoint returns the most recent import time in the ledger.
// If the ledger is empty, it returns a zero time.Time.
func (s *Store) GetLedgerCheckpoint(ctx context.Context) (time.Time, error) {
	var maxImported sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(imported_at) FROM processed_bookmarks`).Scan(&maxImported)
	if err != nil {
		return time.Time{}, fmt.Errorf("query ledger checkpoint: %w", err)
	}

	if !maxImported.Valid || maxImported.String == "" {
		return time.Time{}, nil
	}

	t, err := parseTime(maxImported.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checkpoint time: %w", err)
	}

	return t, nil
}
