package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/vaultmark/vaultmark/internal/domain"
)

// AddSyncRun records a finished run and drops the oldest records beyond
// the retention limit.
func (s *Store) AddSyncRun(ctx context.Context, run *domain.SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal sync run: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(syncRunKey(run.StartedAt), data); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)

		// Reverse iteration needs a seek key past the end of the prefix.
		seek := append([]byte(prefixSyncRun), 0xFF)
		var stale [][]byte
		count := 0
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixSyncRun)); it.Next() {
			count++
			if count > maxSyncRunRecord {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSyncRuns returns up to limit runs, newest first.
func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxSyncRunRecord {
		limit = maxSyncRunRecord
	}

	runs := make([]domain.SyncRun, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefixSyncRun), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixSyncRun)) && len(runs) < limit; it.Next() {
			var run domain.SyncRun
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("decode sync run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
