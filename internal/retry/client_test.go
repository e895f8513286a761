package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// trackingBody records whether a response body was read before being closed.
type trackingBody struct {
	r      io.Reader
	read   atomic.Bool
	closed atomic.Bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.read.Store(true)
	return b.r.Read(p)
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func fastPolicy(base Policy) Policy {
	base.BaseDelay = time.Millisecond
	base.MaxJitter = 0
	return base
}

func getRequest(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func recordRetries(events *[]Event) Option {
	return WithRetryHook(func(_ context.Context, e Event) { *events = append(*events, e) })
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	var events []Event
	client := New(fastPolicy(ServerPolicy()), recordRetries(&events))

	resp, err := client.Do(context.Background(), getRequest(srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, events)
}

func TestDo_ExhaustsBudgetOnTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		http.Error(w, fmt.Sprintf("overloaded %d", n), http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	var events []Event
	client := New(fastPolicy(ServerPolicy()), recordRetries(&events))

	_, err := client.Do(context.Background(), getRequest(srv.URL))
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "overloaded 3", "final body must be included")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Attempt)
	assert.Equal(t, time.Millisecond, events[0].Delay)
	assert.Equal(t, 1, events[1].Attempt)
	assert.Equal(t, 2*time.Millisecond, events[1].Delay)
}

func TestDo_StopsAfterSuccessOnAttemptK(t *testing.T) {
	for k := 1; k <= 5; k++ {
		k := k
		t.Run(fmt.Sprintf("succeeds on attempt %d", k), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) < k {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			t.Cleanup(srv.Close)

			var events []Event
			client := New(fastPolicy(ClientPolicy()), recordRetries(&events))

			resp, err := client.Do(context.Background(), getRequest(srv.URL))
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, int32(k), calls.Load())
			assert.Len(t, events, k-1)
		})
	}
}

func TestDo_TransportFailureAttemptsExactlyN(t *testing.T) {
	for n := 1; n <= 5; n++ {
		n := n
		t.Run(fmt.Sprintf("budget %d", n), func(t *testing.T) {
			var calls int
			failing := doerFunc(func(*http.Request) (*http.Response, error) {
				calls++
				return nil, errors.New("connection refused")
			})

			var events []Event
			policy := Policy{MaxAttempts: n, BaseDelay: time.Millisecond}
			client := New(policy, WithHTTPClient(failing), recordRetries(&events))

			_, err := client.Do(context.Background(), getRequest("http://upstream.invalid"))
			require.Error(t, err)

			var exhausted *ExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, n, exhausted.Attempts)
			assert.Contains(t, err.Error(), fmt.Sprintf("%d attempts", n))
			assert.Contains(t, err.Error(), "connection refused")

			assert.Equal(t, n, calls)
			require.Len(t, events, n-1)
			for i, e := range events {
				assert.Equal(t, policy.Delay(i), e.Delay)
			}
		})
	}
}

func TestDo_NonTransientStatusIsTerminalOnServerPolicy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	client := New(fastPolicy(ServerPolicy()))

	_, err := client.Do(context.Background(), getRequest(srv.URL))
	require.Error(t, err)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad request")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ClientPolicyRetriesAnyStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	client := New(fastPolicy(ClientPolicy()))

	_, err := client.Do(context.Background(), getRequest(srv.URL))
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.Equal(t, int32(5), calls.Load())
}

func TestDo_RetriedBodiesAreNotRead(t *testing.T) {
	var bodies []*trackingBody
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		body := &trackingBody{r: strings.NewReader(fmt.Sprintf("rate limited %d", len(bodies)+1))}
		bodies = append(bodies, body)
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Body:       body,
		}, nil
	})

	client := New(fastPolicy(ServerPolicy()), WithHTTPClient(doer))

	_, err := client.Do(context.Background(), getRequest("http://upstream.invalid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited 3")

	require.Len(t, bodies, 3)
	for i, b := range bodies[:2] {
		assert.False(t, b.read.Load(), "body %d should not be read", i)
		assert.True(t, b.closed.Load(), "body %d should be closed", i)
	}
	assert.True(t, bodies[2].read.Load(), "final body is read for the error")
	assert.True(t, bodies[2].closed.Load())
}

func TestDo_ContextCancelled(t *testing.T) {
	failing := doerFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("unreachable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(Policy{MaxAttempts: 3, BaseDelay: time.Hour}, WithHTTPClient(failing))

	_, err := client.Do(ctx, getRequest("http://upstream.invalid"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RequestBuildErrorIsNotRetried(t *testing.T) {
	var built int
	client := New(fastPolicy(ClientPolicy()))

	_, err := client.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		built++
		return nil, errors.New("bad url")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad url")
	assert.Equal(t, 1, built)
}

func TestDescribeOmitsRequestURL(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "https://example.com/v1?key=secret", Err: errors.New("dial tcp: refused")}
	got := describe(err)
	assert.Equal(t, "Post: dial tcp: refused", got)
	assert.NotContains(t, got, "secret")
}

type hookKey struct{}

func TestDo_RetryHookReceivesRequestContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	var seen []any
	client := New(fastPolicy(ServerPolicy()), WithRetryHook(func(ctx context.Context, _ Event) {
		seen = append(seen, ctx.Value(hookKey{}))
	}))

	ctx := context.WithValue(context.Background(), hookKey{}, "request-1")
	resp, err := client.Do(ctx, getRequest(srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, seen, 1)
	assert.Equal(t, "request-1", seen[0])
}
