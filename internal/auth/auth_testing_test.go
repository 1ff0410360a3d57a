package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/tokenstore"
)

const testRedirect = "vaultmark://oauth/callback"

var testNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

// testProvider is a fake token and revoke endpoint.
type testProvider struct {
	server      *httptest.Server
	tokenHits   atomic.Int32
	revokeHits  atomic.Int32
	tokenFunc   http.HandlerFunc
	revokeFunc  http.HandlerFunc
	lastRevoke  atomic.Pointer[http.Request]
	lastRevForm atomic.Pointer[map[string][]string]
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()
	p := &testProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenHits.Add(1)
		if p.tokenFunc == nil {
			http.Error(w, "no handler", http.StatusInternalServerError)
			return
		}
		p.tokenFunc(w, r)
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		p.revokeHits.Add(1)
		_ = r.ParseForm()
		form := map[string][]string(r.PostForm)
		p.lastRevForm.Store(&form)
		p.lastRevoke.Store(r)
		if p.revokeFunc == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		p.revokeFunc(w, r)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func writeToken(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": description})
}

// newTestFlow wires a flow to the fake provider with in-memory credentials.
func newTestFlow(t *testing.T, p *testProvider, creds domain.Credentials) (*Flow, *tokenstore.Store) {
	t.Helper()

	state := settings.New(&domain.Settings{Credentials: creds}, nil)
	tokens, err := tokenstore.New(context.Background(), tokenstore.NewSettingsBackend(state), nil)
	require.NoError(t, err)

	base := "https://provider.invalid"
	if p != nil {
		base = p.server.URL
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := New(Config{
		AuthorizeURL:   "https://x.example/i/oauth2/authorize",
		TokenURL:       base + "/oauth2/token",
		RevokeURL:      base + "/oauth2/revoke",
		RedirectURI:    testRedirect,
		Scopes:         []string{"tweet.read", "users.read", "bookmark.read", "offline.access"},
		RequestTimeout: 2 * time.Second,
	}, tokens, logger, WithClock(func() time.Time { return testNow }))

	return f, tokens
}
