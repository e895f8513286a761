package retry

import (
	"math/rand/v2"
	"net/http"
	"time"
)

// Policy describes how many times a request is attempted and how long to wait
// between attempts.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first attempt.
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt; it doubles per attempt.
	BaseDelay time.Duration
	// MaxJitter adds a uniform random delay in [0, MaxJitter) to every wait.
	// Zero disables jitter.
	MaxJitter time.Duration
	// RetryStatus reports whether a non-2xx status is worth another attempt.
	// A nil RetryStatus retries every non-2xx status.
	RetryStatus func(status int) bool
}

// ServerPolicy is used for calls from the API server to the Gemini endpoint:
// three attempts, one second of jitter, retrying only transient statuses.
func ServerPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
		RetryStatus: IsTransientStatus,
	}
}

// ClientPolicy is used for calls from a frontend to the API server: five
// attempts, no jitter, and every non-2xx status is retried.
func ClientPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// IsTransientStatus reports 403, 429 and every 5xx status as retryable.
func IsTransientStatus(status int) bool {
	return status == http.StatusForbidden ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// Delay returns the base wait after the failed attempt with the given
// 0-indexed number: 2^attempt * BaseDelay. Jitter is not included.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the shift so a misconfigured budget cannot overflow.
	if attempt > 30 {
		attempt = 30
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// MaxBackoff is the longest total time spent sleeping between attempts when
// every attempt fails, jitter included.
func (p Policy) MaxBackoff() time.Duration {
	var total time.Duration
	for i := 0; i < p.attempts()-1; i++ {
		total += p.Delay(i)
		if p.MaxJitter > 0 {
			total += p.MaxJitter
		}
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryStatus(status int) bool {
	if p.RetryStatus == nil {
		return true
	}
	return p.RetryStatus(status)
}

// JitterFunc returns a random duration in [0, max).
type JitterFunc func(max time.Duration) time.Duration

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// schedule adapts a Policy to backoff.BackOff. Each call to NextBackOff
// corresponds to one failed attempt, in order.
type schedule struct {
	policy  Policy
	jitter  JitterFunc
	attempt int
}

func (s *schedule) NextBackOff() time.Duration {
	delay := s.policy.Delay(s.attempt)
	if s.policy.MaxJitter > 0 && s.jitter != nil {
		delay += s.jitter(s.policy.MaxJitter)
	}
	s.attempt++
	return delay
}

func (s *schedule) Reset() {
	s.attempt = 0
}
