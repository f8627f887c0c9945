package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Authenticator renews the session after a hard-auth-failure.
type Authenticator interface {
	Refresh(ctx context.Context) error
}

// Config configures a Client.
type Config struct {
	// BaseURL is the REST root (e.g., http://localhost:3001/api).
	BaseURL string

	Timeout    time.Duration
	MaxRetries int

	// Jar holds the session cookies. A fresh jar is created when nil.
	Jar http.CookieJar

	// Authenticator defaults to the client's own POST /auth/refresh.
	Authenticator Authenticator

	Logger *zap.Logger
}

// Client is a thin JSON client for the task board REST API. Session
// cookies travel through the shared cookie jar. A hard-auth-failure on
// any non-auth endpoint triggers one shared session refresh; the failed
// call is then retried once.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger

	mu        sync.RWMutex
	auth      Authenticator
	onExpired func(error)

	refreshGroup singleflight.Group
}

// NewClient creates a REST client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", cfg.BaseURL)
	}

	jar := cfg.Jar
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		maxRetries: maxRetries,
		logger:     logger.Named("api"),
		auth:       cfg.Authenticator,
	}
	if c.auth == nil {
		c.auth = c
	}
	return c, nil
}

// BaseURL returns the REST root URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Jar returns the cookie jar shared with the push channel.
func (c *Client) Jar() http.CookieJar { return c.httpClient.Jar }

// SetAuthenticator replaces the session refresher.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

// OnSessionExpired registers fn to run once per failed refresh. It
// replaces any previous hook.
func (c *Client) OnSessionExpired(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// Patch performs an HTTP PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}

// do sends the request and applies auth interception.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	err := c.send(ctx, method, path, body, result)
	if err == nil || !IsAuthError(err) || isAuthEndpoint(path) {
		return err
	}

	c.logger.Debug("hard auth failure, refreshing session",
		zap.String("method", method),
		zap.String("path", path),
	)
	if rerr := c.refresh(ctx); rerr != nil {
		return rerr
	}
	return c.send(ctx, method, path, body, result)
}

// refresh collapses concurrent refresh attempts into one. Every caller
// waiting on the same attempt gets its result.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	auth := c.auth
	c.mu.RUnlock()
	if auth == nil {
		return ErrSessionExpired
	}

	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		if err := auth.Refresh(ctx); err != nil {
			c.logger.Warn("session refresh failed", zap.Error(err))
			c.mu.RLock()
			hook := c.onExpired
			c.mu.RUnlock()
			if hook != nil {
				hook(err)
			}
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		c.logger.Debug("session refreshed")
		return nil, nil
	})
	return err
}

// send builds the request, retries 429 responses with backoff and decodes
// the JSON response.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	target := c.baseURL.String() + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	route := routeLabel(path)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			observeRequest(method, route, "error", start)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%s %s: %w", method, path, ctxErr)
			}
			return &Error{Kind: KindNetwork, Method: method, Path: path, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		observeRequest(method, route, strconv.Itoa(resp.StatusCode), start)
		if readErr != nil {
			return &Error{Kind: KindNetwork, Method: method, Path: path, Err: readErr}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfterDuration(resp, attempt)
			lastErr = classify(method, path, resp.StatusCode, serverMessage(respBody))
			c.logger.Debug("rate limited",
				zap.String("path", path),
				zap.Duration("wait", wait),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return classify(method, path, resp.StatusCode, serverMessage(respBody))
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// serverMessage extracts {"message": "..."} from an error body, falling
// back to the raw text for short non-JSON bodies.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func isAuthEndpoint(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// routeLabel strips the query and collapses id segments so request
// metrics keep a bounded label set.
func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if len(seg) < 8 {
		return false
	}
	if _, err := uuid.Parse(seg); err == nil {
		return true
	}
	for _, r := range seg {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// escape encodes a single path segment.
func escape(id string) string { return url.PathEscape(id) }

var (
	errMissingUser = errors.New("response carries no user")
	errMissingTask = errors.New("response carries no task")
)
