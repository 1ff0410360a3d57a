package xapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/ratelimit"
)

var testNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "load fixture %s", name)
	return data
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{
		WithThrottle(ratelimit.NewThrottle(1000, 100, 0)),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	client := New(server.URL+"/2", 2*time.Second, logger, opts...)
	t.Cleanup(client.Close)
	return client
}

func TestClient_Me(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/me", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"id":"42","name":"Ada","username":"ada"}}`))
	})

	user, err := client.Me(context.Background(), "at-1")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "42", Name: "Ada", Username: "ada"}, user)
}

func TestClient_MeWithoutUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"title":"Not Found Error"}]}`))
	})

	_, err := client.Me(context.Background(), "at-1")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "me", apiErr.Op)
}

func TestClient_Bookmarks(t *testing.T) {
	fixture := loadFixture(t, "bookmarks_page.json")

	tests := []struct {
		name      string
		token     string
		wantToken string
	}{
		{name: "first page", token: "", wantToken: ""},
		{name: "resumed page", token: "abc", wantToken: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/2/users/42/bookmarks", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "100", q.Get("max_results"))
				assert.Equal(t, "author_id,attachments.media_keys", q.Get("expansions"))
				assert.Contains(t, q.Get("tweet.fields"), "created_at")
				assert.Contains(t, q.Get("media.fields"), "preview_image_url")
				assert.Equal(t, tt.wantToken, q.Get("pagination_token"))
				_, _ = w.Write(fixture)
			})

			page, err := client.Bookmarks(context.Background(), "at-1", "42", tt.token)
			require.NoError(t, err)

			require.Len(t, page.Posts, 2)
			assert.Equal(t, []string{"3_100", "7_200"}, page.Posts[0].MediaKeys())
			assert.Nil(t, page.Posts[1].MediaKeys())
			assert.Len(t, page.Users, 2)
			assert.Len(t, page.Media, 2)
			assert.Equal(t, "7140dibdnow9c7btw3z2vwioavpvutgzrzm9icis4ndix", page.NextToken)
		})
	}
}

func TestClient_BookmarksEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})

	page, err := client.Bookmarks(context.Background(), "at-1", "42", "")
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Empty(t, page.NextToken)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     http.Header
		body       string
		wantErr    error
		wantWait   time.Duration
		wantDetail string
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"title":"Unauthorized","type":"about:blank","status":401,"detail":"Unauthorized"}`,
			wantErr:    ErrUnauthorized,
			wantDetail: "Unauthorized",
		},
		{
			name:       "legacy invalid token code",
			status:     http.StatusForbidden,
			body:       `{"errors":[{"code":89,"message":"Invalid or expired token."}]}`,
			wantErr:    ErrUnauthorized,
			wantDetail: "Invalid or expired token.",
		},
		{
			name:     "rate limited with reset epoch",
			status:   http.StatusTooManyRequests,
			header:   http.Header{"X-Rate-Limit-Reset": {"1782900600"}},
			body:     `{"title":"Too Many Requests","detail":"Too Many Requests"}`,
			wantErr:  ErrRateLimited,
			wantWait: 10 * time.Minute,
		},
		{
			name:     "rate limited with retry-after",
			status:   http.StatusTooManyRequests,
			header:   http.Header{"Retry-After": {"120"}},
			wantErr:  ErrRateLimited,
			wantWait: 2 * time.Minute,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"errors":[{"message":"Invalid pagination_token"}]}`,
			wantErr: ErrBadRequest,
		},
		{
			name:    "server error",
			status:  http.StatusServiceUnavailable,
			wantErr: ErrServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header()[k] = v
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Bookmarks(context.Background(), "at-1", "42", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "bookmarks", apiErr.Op)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantWait, apiErr.RetryAfter)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, apiErr.Detail)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := New(server.URL, 50*time.Millisecond, nil, WithThrottle(ratelimit.NewThrottle(1000, 100, 0)))
	t.Cleanup(client.Close)

	_, err := client.Me(context.Background(), "at-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestClient_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := New(server.URL, time.Second, nil, WithThrottle(ratelimit.NewThrottle(1000, 100, 0)))
	t.Cleanup(client.Close)

	_, err := client.Bookmarks(context.Background(), "at-1", "42", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrTimeout)
}
