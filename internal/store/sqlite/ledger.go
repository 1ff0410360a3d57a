package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IsProcessed reports whether a note was already written for the bookmark.
func (s *Store) IsProcessed(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_bookmarks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed bookmark %s: %w", id, err)
	}
	return true, nil
}

// MarkProcessed records the bookmark as imported. Marking twice keeps the
// first import time.
func (s *Store) MarkProcessed(ctx context.Context, id string, at time.Time, notePath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_bookmarks (id, imported_at, note_path)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, formatTime(at), nullString(notePath))
	if err != nil {
		return fmt.Errorf("mark bookmark %s processed: %w", id, err)
	}
	return nil
}

// ProcessedAt returns when a bookmark was imported. ok is false when the
// bookmark is not in the ledger.
func (s *Store) ProcessedAt(ctx context.Context, id string) (at time.Time, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT imported_at FROM processed_bookmarks WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query processed bookmark %s: %w", id, err)
	}

	at, err = parseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse imported_at: %w", err)
	}
	return at, true, nil
}

// ProcessedCount returns the number of bookmarks in the ledger.
func (s *Store) ProcessedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_bookmarks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count processed bookmarks: %w", err)
	}
	return n, nil
}
