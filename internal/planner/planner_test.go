package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/tripintel/internal/retry"
	"github.com/ca-srg/tripintel/internal/types"
)

const upstreamJSON = `{"candidates":[{"content":{"parts":[{"text":"## Rome\nEnjoy."}]},"groundingMetadata":{"groundingAttributions":[{"web":{"uri":"https://a.example","title":"A"}}]}}]}`

type upstream struct {
	server   *httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	lastBody []byte
	lastKey  string
	lastType string
}

func newUpstream(t *testing.T, handler func(n int32, w http.ResponseWriter)) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := u.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.lastBody = body
		u.lastKey = r.URL.Query().Get("key")
		u.lastType = r.Header.Get("Content-Type")
		u.mu.Unlock()
		handler(n, w)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestPlanner(cfg Config, logs *bytes.Buffer) *Planner {
	logger := log.New(io.Discard, "", 0)
	if logs != nil {
		logger = log.New(logs, "", 0)
	}
	policy := retry.ServerPolicy()
	policy.BaseDelay = time.Millisecond
	policy.MaxJitter = time.Millisecond
	return New(cfg, NewUpstreamClient(policy, nil, logger), logger)
}

func TestPlan_MissingDestination(t *testing.T) {
	u := newUpstream(t, func(int32, http.ResponseWriter) {})
	p := newTestPlanner(Config{APIKey: "k", BaseURL: u.server.URL}, nil)

	for _, req := range []types.TripRequest{{}, {Destination: "   "}, {Origin: "Paris"}} {
		_, err := p.Plan(context.Background(), req)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "Destination is required.", validationErr.Message)
	}
	assert.Zero(t, u.calls.Load(), "no outbound call expected")
}

func TestPlan_MissingConfiguration(t *testing.T) {
	u := newUpstream(t, func(int32, http.ResponseWriter) {})

	for _, cfg := range []Config{{}, {APIKey: "k"}, {BaseURL: u.server.URL}} {
		p := newTestPlanner(cfg, nil)
		_, err := p.Plan(context.Background(), types.TripRequest{Destination: "Rome"})

		var configErr *ConfigurationError
		require.ErrorAs(t, err, &configErr)
		assert.Contains(t, configErr.Message, "configuration error")
	}
	assert.Zero(t, u.calls.Load(), "no outbound call expected")
}

func TestPlan_ValidationPrecedesConfiguration(t *testing.T) {
	p := newTestPlanner(Config{}, nil)
	_, err := p.Plan(context.Background(), types.TripRequest{})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestPlan_PassesUpstreamJSONThrough(t *testing.T) {
	u := newUpstream(t, func(_ int32, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamJSON))
	})
	p := newTestPlanner(Config{APIKey: "secret-key", BaseURL: u.server.URL}, nil)

	req := types.TripRequest{Destination: " Rome ", Origin: "Berlin", Experience: "ancient history"}
	got, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, upstreamJSON, string(got), "response must be relayed byte for byte")
	assert.Equal(t, int32(1), u.calls.Load())

	u.mu.Lock()
	defer u.mu.Unlock()
	assert.Equal(t, "secret-key", u.lastKey)
	assert.Equal(t, "application/json", u.lastType)

	var payload Payload
	require.NoError(t, json.Unmarshal(u.lastBody, &payload))
	require.Len(t, payload.Contents, 1)
	require.Len(t, payload.Contents[0].Parts, 1)
	assert.Equal(t, UserQuery(req.Normalized()), payload.Contents[0].Parts[0].Text)
	assert.Contains(t, payload.Contents[0].Parts[0].Text, "to: Rome.")
	assert.Contains(t, payload.Contents[0].Parts[0].Text, "ancient history")
	require.NotNil(t, payload.SystemInstruction)
	assert.Equal(t, SystemPrompt("Berlin"), payload.SystemInstruction.Parts[0].Text)
	require.Len(t, payload.Tools, 1)
	assert.NotNil(t, payload.Tools[0].GoogleSearch)
}

func TestPlan_RetriesTransientUpstreamFailures(t *testing.T) {
	u := newUpstream(t, func(n int32, w http.ResponseWriter) {
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(upstreamJSON))
	})
	p := newTestPlanner(Config{APIKey: "k", BaseURL: u.server.URL}, nil)

	got, err := p.Plan(context.Background(), types.TripRequest{Destination: "Rome"})
	require.NoError(t, err)
	assert.JSONEq(t, upstreamJSON, string(got))
	assert.Equal(t, int32(3), u.calls.Load())
}

func TestPlan_UpstreamFailureIsWrappedAndRedacted(t *testing.T) {
	u := newUpstream(t, func(_ int32, w http.ResponseWriter) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})

	var logs bytes.Buffer
	p := newTestPlanner(Config{APIKey: "super-secret", BaseURL: u.server.URL}, &logs)

	_, err := p.Plan(context.Background(), types.TripRequest{Destination: "Rome"})

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)

	var exhausted *retry.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, int32(3), u.calls.Load())

	assert.Contains(t, logs.String(), "backend exploded")
	assert.NotContains(t, logs.String(), "super-secret")
}

func TestPlan_TransportErrorDoesNotLeakKey(t *testing.T) {
	u := newUpstream(t, func(int32, http.ResponseWriter) {})
	baseURL := u.server.URL
	u.server.Close()

	var logs bytes.Buffer
	p := newTestPlanner(Config{APIKey: "super-secret", BaseURL: baseURL}, &logs)

	_, err := p.Plan(context.Background(), types.TripRequest{Destination: "Rome"})

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.NotEmpty(t, logs.String())
	assert.NotContains(t, logs.String(), "super-secret")
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestPlan_InvalidUpstreamJSON(t *testing.T) {
	u := newUpstream(t, func(_ int32, w http.ResponseWriter) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})
	p := newTestPlanner(Config{APIKey: "k", BaseURL: u.server.URL}, nil)

	_, err := p.Plan(context.Background(), types.TripRequest{Destination: "Rome"})

	var upstreamErr *UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(&types.Config{GeminiAPIKey: "k", GeminiAPIURL: "https://example.com"})
	assert.Equal(t, Config{APIKey: "k", BaseURL: "https://example.com"}, cfg)
	assert.Equal(t, Config{}, FromAppConfig(nil))
	assert.Equal(t, "https://example.com?key=k", cfg.endpoint())
}
