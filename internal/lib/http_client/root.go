package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/log"
)

var Logger = log.NewLogger()

const (
	DefaultTimeout         = 30 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultRetries         = 3
	DefaultBackoff         = 2 * time.Second
	maxRetryAfter          = time.Hour
)

// Doer is the part of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOption decorates an outgoing request, e.g. with auth headers.
type RequestOption func(req *http.Request)

// Client performs GET and HEAD requests with bounded retries for
// rate limiting and server errors.
type Client struct {
	doer    Doer
	retries int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithDoer sets the transport used for requests.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithTimeout replaces the transport with an *http.Client using the given timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.doer = &http.Client{Timeout: timeout}
	}
}

// WithRetries sets how many extra attempts are made after a retryable response.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithBackoff sets the base wait between attempts. It doubles on each attempt.
func WithBackoff(backoff time.Duration) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		doer:    &http.Client{Timeout: DefaultTimeout},
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request. The caller closes the body.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, opts)
}

// Head issues a HEAD request. Redirects are followed, so the returned
// headers belong to the final location.
func (c *Client) Head(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, url, opts)
}

func (c *Client) do(ctx context.Context, method, url string, opts []RequestOption) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, err
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= c.retries {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		wait := c.retryWait(resp, attempt)
		Logger.Warn("Retrying request", "url", url, "status", resp.StatusCode, "retry_after", wait, "attempt", attempt+1)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *Client) retryWait(resp *http.Response, attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			wait = min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// IsSuccess reports whether a status code is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// BearerToken adds an Authorization header when token is not empty.
func BearerToken(token string) RequestOption {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// BasicAuth adds basic credentials when a username is set.
func BasicAuth(username, password string) RequestOption {
	return func(req *http.Request) {
		if username != "" {
			req.SetBasicAuth(username, password)
		}
	}
}

// Header sets a single request header.
func Header(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}
