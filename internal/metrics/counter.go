package metrics

import (
	"context"
	"sync"
	"time"
)

// Outcome classifies how a plan request ended.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeInvalid       Outcome = "invalid_request"
	OutcomeConfiguration Outcome = "configuration_error"
	OutcomeUpstream      Outcome = "upstream_error"
)

// AllOutcomes lists every outcome in reporting order.
var AllOutcomes = []Outcome{OutcomeSuccess, OutcomeInvalid, OutcomeConfiguration, OutcomeUpstream}

var (
	totalsMu sync.Mutex
	totals   = make(map[Outcome]int64)
)

// RecordPlan counts a finished plan request and records its latency.
func RecordPlan(ctx context.Context, outcome Outcome, duration time.Duration) {
	totalsMu.Lock()
	totals[outcome]++
	totalsMu.Unlock()

	recordPlanLatency(ctx, outcome, duration)
}

// RecordUpstreamRetry counts one backoff sleep before retrying the upstream call.
func RecordUpstreamRetry(ctx context.Context, attempt int) {
	recordRetry(ctx, attempt)
}

// GetStats returns the process-lifetime totals for every outcome.
func GetStats() map[Outcome]int64 {
	totalsMu.Lock()
	defer totalsMu.Unlock()

	stats := make(map[Outcome]int64, len(AllOutcomes))
	for _, outcome := range AllOutcomes {
		stats[outcome] = totals[outcome]
	}
	return stats
}

// ResetForTesting clears the in-process totals.
// This should only be used in tests.
func ResetForTesting() {
	totalsMu.Lock()
	totals = make(map[Outcome]int64)
	totalsMu.Unlock()
}
