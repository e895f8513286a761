// Package tripclient calls the trip planning API from a frontend process.
package tripclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ca-srg/tripintel/internal/retry"
	"github.com/ca-srg/tripintel/internal/types"
)

// PlanTripPath is the proxy route, relative to the server base URL
const PlanTripPath = "/api/plan-trip"

// DefaultTimeout bounds one attempt against the proxy. It is longer than the
// server's default write timeout so a slow upstream surfaces as the server's
// own error response rather than a client timeout.
const DefaultTimeout = 200 * time.Second

// ProxyError is a non-2xx answer from the proxy
type ProxyError struct {
	StatusCode int
	Message    string
}

func (e *ProxyError) Error() string {
	return "Proxy error: " + e.Message
}

// FetchError is returned once every attempt against the proxy has failed
type FetchError struct {
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch API after %d attempts. Last error: %v", e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() error {
	return e.Last
}

// Client talks to a trip planning server
type Client struct {
	baseURL string
	retry   *retry.Client
}

// Option configures the Client
type Option func(*options)

type options struct {
	policy     retry.Policy
	httpClient retry.Doer
	logger     *log.Logger
}

// WithPolicy overrides the client retry policy
func WithPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithHTTPClient sets the transport
func WithHTTPClient(d retry.Doer) Option {
	return func(o *options) { o.httpClient = d }
}

// WithLogger sets the logger for retry notices
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	o := options{
		policy:     retry.ClientPolicy(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.New(log.Writer(), "[tripclient] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		retry: retry.New(o.policy,
			retry.WithHTTPClient(o.httpClient),
			retry.WithLogger(o.logger),
		),
	}
}

// PlanTrip posts the request to the proxy and returns the raw upstream JSON.
func (c *Client) PlanTrip(ctx context.Context, req types.TripRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trip request: %w", err)
	}

	resp, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PlanTripPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, c.translate(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("proxy returned invalid JSON")
	}
	return json.RawMessage(data), nil
}

func (c *Client) translate(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return &FetchError{Attempts: exhausted.Attempts, Last: proxyError(exhausted.Last)}
	}
	return proxyError(err)
}

// proxyError prefers the server's {error} body and falls back to the
// status text.
func proxyError(err error) error {
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	msg := statusErr.StatusText()
	var eb types.ErrorBody
	if statusErr.Body != "" && json.Unmarshal([]byte(statusErr.Body), &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}
	return &ProxyError{StatusCode: statusErr.StatusCode, Message: msg}
}
