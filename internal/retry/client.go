// Package retry wraps HTTP calls with bounded exponential backoff.
//
// The same Client serves both ends of a trip request: the API server talks to
// the Gemini endpoint with ServerPolicy, and frontends talk to the API server
// with ClientPolicy. The two policies differ in which statuses they retry.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Doer executes a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFunc builds a fresh request for every attempt, so request bodies can
// be replayed.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Event describes a failed attempt that is about to be retried.
type Event struct {
	// Attempt is the 0-indexed number of the attempt that failed.
	Attempt int
	Delay   time.Duration
	Err     error
}

// Client executes requests under a Policy.
type Client struct {
	policy  Policy
	http    Doer
	logger  *log.Logger
	jitter  JitterFunc
	onRetry func(context.Context, Event)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for each attempt.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithJitter overrides the jitter source (tests use a fixed value).
func WithJitter(j JitterFunc) Option {
	return func(c *Client) {
		if j != nil {
			c.jitter = j
		}
	}
}

// WithRetryHook registers a callback invoked once before every backoff sleep.
// It receives the context passed to Do.
func WithRetryHook(fn func(context.Context, Event)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// New constructs a Client for the given policy.
func New(policy Policy, opts ...Option) *Client {
	c := &Client{
		policy: policy,
		http:   http.DefaultClient,
		logger: log.New(io.Discard, "", 0),
		jitter: uniformJitter,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Policy returns the policy the client was built with.
func (c *Client) Policy() Policy {
	return c.policy
}

// Do runs newRequest until a 2xx response is received, a non-retryable status
// is returned, or the attempt budget is exhausted. The returned response body
// must be closed by the caller.
func (c *Client) Do(ctx context.Context, newRequest RequestFunc) (*http.Response, error) {
	maxAttempts := c.policy.attempts()
	attempts := 0

	operation := func() (*http.Response, error) {
		attempts++
		final := attempts >= maxAttempts

		req, err := newRequest(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		retryable := c.policy.retryStatus(resp.StatusCode)
		if retryable && !final {
			// Another attempt follows; the body is not needed.
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}

		statusErr := readStatusError(resp)
		if !retryable {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Printf("Attempt %d/%d failed: %s; retrying in %v", attempts, maxAttempts, describe(err), delay)
		if c.onRetry != nil {
			c.onRetry(ctx, Event{Attempt: attempts - 1, Delay: delay, Err: err})
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&schedule{policy: c.policy, jitter: c.jitter}),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return resp, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return nil, permanent.Unwrap()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("retry aborted after %d attempts: %w", attempts, err)
	}

	if attempts >= maxAttempts {
		return nil, &ExhaustedError{Attempts: attempts, Last: err}
	}
	return nil, err
}

// describe formats an attempt error for logs without the request URL, which
// may carry credentials in its query string.
func describe(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("%s: %v", urlErr.Op, urlErr.Err)
	}
	return err.Error()
}
