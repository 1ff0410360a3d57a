package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "vaultmark-test-*")
	require.NoError(t, err)

	s, err := New(filepath.Join(tmpDir, "settings"), nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func TestGetSettings_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetSettings(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	call := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	settings := domain.NewSettings(domain.Preferences{
		StorageMethod:    domain.StorageSingle,
		Folder:           "Inbox",
		FilenameTemplate: "{{id}}",
		AutoSync:         true,
	}, 15*time.Minute)
	settings.Credentials = domain.Credentials{ClientID: "cid", AccessToken: "at", RefreshToken: "rt"}
	settings.Rate.LastAPICallTime = call
	settings.Cursor = domain.PaginationCursor{NextToken: "tok", LastPageIndex: 3}

	require.NoError(t, s.SaveSettings(ctx, settings))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)

	assert.Equal(t, settings.Credentials, got.Credentials)
	assert.Equal(t, settings.Cursor, got.Cursor)
	assert.Equal(t, settings.Preferences, got.Preferences)
	assert.Equal(t, 15*time.Minute, got.Rate.RateWindow)
	assert.True(t, got.Rate.LastAPICallTime.Equal(call))
	assert.True(t, got.LastSyncTimestamp.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestDeleteSettings(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.SaveSettings(ctx, domain.NewSettings(domain.Preferences{}, time.Minute)))
	require.NoError(t, s.DeleteSettings(ctx))

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettings_CancelledContext(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.SaveSettings(ctx, &domain.Settings{}), context.Canceled)
}
