package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/domain"
	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

type fakeRepo struct {
	mu      sync.Mutex
	stored  *domain.Settings
	saves   int
	saveErr error
}

func (f *fakeRepo) GetSettings(context.Context) (*domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		return nil, domainerrors.NotFound("no settings")
	}
	cp := *f.stored
	return &cp, nil
}

func (f *fakeRepo) SaveSettings(_ context.Context, s *domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *s
	f.stored = &cp
	return nil
}

func TestLoad_SeedsOnFirstRun(t *testing.T) {
	repo := &fakeRepo{}
	seed := domain.NewSettings(domain.Preferences{Folder: "Bookmarks"}, 15*time.Minute)

	st, err := Load(context.Background(), repo, seed)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, "Bookmarks", st.Snapshot().Preferences.Folder)
}

func TestLoad_UsesStoredBlob(t *testing.T) {
	repo := &fakeRepo{stored: &domain.Settings{Cursor: domain.PaginationCursor{NextToken: "tok"}}}

	st, err := Load(context.Background(), repo, domain.NewSettings(domain.Preferences{}, time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 0, repo.saves)
	assert.Equal(t, "tok", st.Snapshot().Cursor.NextToken)
}

func TestLoad_PropagatesOtherErrors(t *testing.T) {
	repo := &brokenRepo{}
	_, err := Load(context.Background(), repo, &domain.Settings{})
	assert.ErrorContains(t, err, "disk on fire")
}

type brokenRepo struct{ fakeRepo }

func (*brokenRepo) GetSettings(context.Context) (*domain.Settings, error) {
	return nil, errors.New("disk on fire")
}

func TestUpdate_PersistsAfterMutation(t *testing.T) {
	repo := &fakeRepo{}
	st := New(&domain.Settings{}, repo)

	err := st.Update(context.Background(), func(s *domain.Settings) {
		s.Cursor.Advance("next", false)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, "next", repo.stored.Cursor.NextToken)
	assert.Equal(t, "next", st.Snapshot().Cursor.NextToken)
}

func TestUpdate_SaveFailureKeepsMutation(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("read-only")}
	st := New(&domain.Settings{}, repo)

	err := st.Update(context.Background(), func(s *domain.Settings) {
		s.Preferences.Folder = "X"
	})
	require.Error(t, err)
	assert.Equal(t, "X", st.Snapshot().Preferences.Folder)
}

func TestSnapshot_IsACopy(t *testing.T) {
	st := New(&domain.Settings{}, nil)
	snap := st.Snapshot()
	snap.Preferences.Folder = "mutated"

	assert.Empty(t, st.Snapshot().Preferences.Folder)
}
