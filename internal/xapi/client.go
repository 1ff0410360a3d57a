// Package xapi is a small client for the provider's v2 REST API: the
// authenticated user lookup and the bookmarks list.
package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vaultmark/vaultmark/internal/ratelimit"
)

const (
	// Politeness spacing per endpoint. The provider's own budget for
	// bookmarks is far stricter and enforced by ratelimit.Gate.
	defaultRPS   = 1.0
	defaultBurst = 2

	defaultTimeout = 10 * time.Second

	// MaxResults is the provider's page size cap.
	MaxResults = 100

	maxBodyBytes = 8 << 20
)

// Legacy error code the provider still returns for a dead token.
const codeInvalidToken = 89

// Client is a throttled provider API client.
type Client struct {
	baseURL  string
	http     *http.Client
	throttle *ratelimit.Throttle
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithThrottle replaces the default per-endpoint throttle.
func WithThrottle(t *ratelimit.Throttle) Option {
	return func(cl *Client) { cl.throttle = t }
}

// WithClock overrides the time source used for Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New creates a client for the API rooted at baseURL
// (e.g. https://api.x.com/2). Requests abort after timeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.throttle == nil {
		c.throttle = ratelimit.NewThrottle(defaultRPS, defaultBurst, 0)
	}
	return c
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.throttle.Stop()
}

// Me resolves the account the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (User, error) {
	query := url.Values{"user.fields": {"name,username"}}

	body, err := c.doRequest(ctx, "me", accessToken, "/users/me", query)
	if err != nil {
		return User{}, err
	}

	var resp rawUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return User{}, wrapError("me", http.StatusOK, fmt.Errorf("parse response: %w", err))
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return User{}, wrapError("me", http.StatusOK, errors.New("response carried no user"))
	}
	return *resp.Data, nil
}

// Bookmarks fetches one page of the user's bookmarks, newest first.
// An empty paginationToken requests the first page.
func (c *Client) Bookmarks(ctx context.Context, accessToken, userID, paginationToken string) (*Page, error) {
	query := url.Values{
		"expansions":   {"author_id,attachments.media_keys"},
		"tweet.fields": {"created_at,author_id,attachments"},
		"user.fields":  {"name,username"},
		"media.fields": {"url,preview_image_url,type"},
		"max_results":  {strconv.Itoa(MaxResults)},
	}
	if paginationToken != "" {
		query.Set("pagination_token", paginationToken)
	}

	body, err := c.doRequest(ctx, "bookmarks", accessToken, "/users/"+url.PathEscape(userID)+"/bookmarks", query)
	if err != nil {
		return nil, err
	}

	var resp rawBookmarksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("bookmarks", http.StatusOK, fmt.Errorf("parse response: %w", err))
	}

	return &Page{
		Posts:     resp.Data,
		Users:     resp.Includes.Users,
		Media:     resp.Includes.Media,
		NextToken: resp.Meta.NextToken,
	}, nil
}

// doRequest executes an authenticated GET with throttling.
func (c *Client) doRequest(ctx context.Context, op, accessToken, path string, query url.Values) ([]byte, error) {
	if err := c.throttle.Wait(ctx, op); err != nil {
		return nil, wrapError(op, 0, classifyTransport(err))
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, wrapError(op, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", "vaultmark/1.0")

	c.logger.Debug("provider request", "op", op, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(op, 0, classifyTransport(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapError(op, resp.StatusCode, classifyTransport(err))
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, c.statusError(op, resp, body)
}

func (c *Client) statusError(op string, resp *http.Response, body []byte) *Error {
	problem := parseProblem(body)
	e := wrapError(op, resp.StatusCode, nil)
	e.Detail = problem.text()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, problem.invalidToken():
		e.Err = ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Err = ErrRateLimited
		if wait, ok := ratelimit.ParseRetryAfter(resp.Header, string(body), c.now()); ok {
			e.RetryAfter = wait
		}
	case resp.StatusCode == http.StatusBadRequest:
		e.Err = ErrBadRequest
	case resp.StatusCode >= 500:
		e.Err = ErrServer
	default:
		e.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.logger.Warn("provider rejected request",
		"op", op,
		"status", resp.StatusCode,
		"detail", e.Detail,
	)
	return e
}

// classifyTransport maps a failed round trip to ErrTimeout or ErrNetwork,
// keeping the cause in the chain.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func parseProblem(body []byte) rawErrorBody {
	var p rawErrorBody
	_ = json.Unmarshal(body, &p)
	return p
}

func (p rawErrorBody) invalidToken() bool {
	for _, e := range p.Errors {
		if e.Code == codeInvalidToken {
			return true
		}
	}
	return false
}

func (p rawErrorBody) text() string {
	for _, s := range []string{p.Detail, p.Title} {
		if s != "" {
			return s
		}
	}
	for _, e := range p.Errors {
		for _, s := range []string{e.Message, e.Detail, e.Title} {
			if s != "" {
				return s
			}
		}
	}
	return ""
}
