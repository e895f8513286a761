// Package planner turns a trip request into a grounded generateContent call
// and relays the upstream JSON unchanged.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ca-srg/tripintel/internal/metrics"
	"github.com/ca-srg/tripintel/internal/retry"
	"github.com/ca-srg/tripintel/internal/types"
)

var plannerTracer = otel.Tracer("tripintel/planner")

// Config holds the upstream credentials. It is built once at startup and
// injected, never looked up from the environment per request.
type Config struct {
	APIKey  string
	BaseURL string
}

// FromAppConfig extracts the planner credentials from the root configuration
func FromAppConfig(cfg *types.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiAPIURL}
}

func (c Config) complete() bool {
	return c.APIKey != "" && c.BaseURL != ""
}

// endpoint returns ${BaseURL}?key=${APIKey}
func (c Config) endpoint() string {
	return c.BaseURL + "?key=" + url.QueryEscape(c.APIKey)
}

// Planner validates trip requests and forwards them upstream
type Planner struct {
	config Config
	client *retry.Client
	logger *log.Logger
}

// New creates a Planner. A nil client defaults to the server retry policy
// over http.DefaultClient.
func New(cfg Config, client *retry.Client, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(log.Writer(), "[planner] ", log.LstdFlags)
	}
	if client == nil {
		client = NewUpstreamClient(retry.ServerPolicy(), nil, logger)
	}
	return &Planner{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// NewUpstreamClient builds the retrying client used for Gemini calls. Every
// retry is counted in the upstream retry metric.
func NewUpstreamClient(policy retry.Policy, httpClient retry.Doer, logger *log.Logger) *retry.Client {
	opts := []retry.Option{
		retry.WithLogger(logger),
		retry.WithRetryHook(func(ctx context.Context, e retry.Event) {
			metrics.RecordUpstreamRetry(ctx, e.Attempt)
		}),
	}
	if httpClient != nil {
		opts = append(opts, retry.WithHTTPClient(httpClient))
	}
	return retry.New(policy, opts...)
}

// Plan validates the request, calls the generative API and returns its raw
// JSON response. Errors are *ValidationError, *ConfigurationError or
// *UpstreamError.
func (p *Planner) Plan(ctx context.Context, req types.TripRequest) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := plannerTracer.Start(ctx, "planner.Plan", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	req = req.Normalized()
	span.SetAttributes(
		attribute.Bool("trip.origin_provided", req.Origin != ""),
		attribute.Bool("trip.experience_provided", req.Experience != ""),
	)

	result, outcome, err := p.plan(ctx, req)
	metrics.RecordPlan(ctx, outcome, time.Since(start))
	span.SetAttributes(attribute.String("trip.outcome", string(outcome)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (p *Planner) plan(ctx context.Context, req types.TripRequest) (json.RawMessage, metrics.Outcome, error) {
	if req.Destination == "" {
		return nil, metrics.OutcomeInvalid, &ValidationError{Message: MsgDestinationRequired}
	}
	if !p.config.complete() {
		return nil, metrics.OutcomeConfiguration, &ConfigurationError{Message: MsgConfiguration}
	}

	body, err := json.Marshal(BuildPayload(req))
	if err != nil {
		return nil, metrics.OutcomeUpstream, &UpstreamError{Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	endpoint := p.config.endpoint()
	resp, err := p.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		// The error travels further (server logs, spans); drop the key from
		// any URL it carries.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = p.redact(urlErr.URL)
		}
		p.logger.Printf("Gemini request failed: %s", p.redact(err.Error()))
		return nil, metrics.OutcomeUpstream, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Printf("Failed to read Gemini response: %s", p.redact(err.Error()))
		return nil, metrics.OutcomeUpstream, &UpstreamError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if !json.Valid(raw) {
		p.logger.Printf("Gemini returned a non-JSON body (%d bytes)", len(raw))
		return nil, metrics.OutcomeUpstream, &UpstreamError{Err: fmt.Errorf("upstream returned invalid JSON")}
	}

	return json.RawMessage(raw), metrics.OutcomeSuccess, nil
}

// redact removes the API key from text destined for logs. Transport errors
// embed the full request URL, key included.
func (p *Planner) redact(s string) string {
	if p.config.APIKey == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(p.config.APIKey), "REDACTED")
	return strings.ReplaceAll(s, p.config.APIKey, "REDACTED")
}
