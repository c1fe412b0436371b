package canvas

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults for the fetch policy.
const (
	// DefaultTimeout bounds one API request including reading its body.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the number of tries for a throttled request.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff before the first retry.
	// Attempt n waits DefaultBaseDelay*2^n plus up to half of that again.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultUserAgent identifies canvasmirror to Canvas.
	DefaultUserAgent = "canvasmirror"
)

// Client performs authenticated requests against one Canvas instance.
// It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	token       string
	userAgent   string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	// sleep and jitter are replaced in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request timeout for API calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the number of attempts for throttled requests and the
// base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a client that authenticates with the given API token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		jitter:      rand.Int64N,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// FetchOne issues an authenticated GET for rawURL.
//
// A 403 response is retried with backoff until maxAttempts requests were
// made; the last 403 is then returned without an error. Transport errors are
// returned immediately. Every other status is returned as-is.
func (c *Client) FetchOne(ctx context.Context, rawURL string) (*Response, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			c.logger.Error("canvas request failed", "url", rawURL, "error", err)
			return nil, err
		}
		if !resp.Forbidden() {
			return resp, nil
		}
		if attempt+1 >= c.maxAttempts {
			c.logger.Debug(deniedHint(rawURL), "url", rawURL, "attempts", attempt+1)
			return resp, nil
		}

		wait := c.backoff(attempt)
		c.logger.Debug("rate limited, backing off",
			"url", rawURL,
			"wait", wait,
			"retry", attempt+1,
			"max_attempts", c.maxAttempts,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Head issues an authenticated HEAD request. No retry is attempted.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, fmt.Errorf("%w: HEAD %s: %d", ErrUnexpectedStatus, rawURL, resp.StatusCode)
	}
	return resp, nil
}

// Open starts an authenticated download and returns the response body and
// its declared length (0 when unknown). The caller must close the body.
//
// Open is not bound by the API timeout: file bodies can take far longer than
// ten seconds to stream. Cancel ctx to abort.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, 0, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: GET %s: %d", ErrUnexpectedStatus, rawURL, resp.StatusCode)
	}
	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return resp.Body, size, nil
}

// do performs one request and reads the whole body under the API timeout.
func (c *Client) do(ctx context.Context, method, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// backoff returns the wait before retry attempt+1:
// base*2^attempt plus a uniform jitter in [0, base*2^attempt/2).
func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseDelay << attempt
	if half := int64(d / 2); half > 0 {
		d += time.Duration(c.jitter(half))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return nil
}

// deniedHint names the likely cause of a persistent 403.
func deniedHint(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/users"):
		return "access denied to course users, the API token may need elevated permissions"
	case strings.Contains(rawURL, "discussion_topics"):
		return "access denied to discussions, the course may restrict discussion access"
	default:
		return "access denied, check API token permissions"
	}
}
