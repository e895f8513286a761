package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	otelMetricsOnce       sync.Once
	otelRegistrationError error

	planLatencyHistogram metric.Float64Histogram
	upstreamRetryCounter metric.Int64Counter
)

// InitOTelMetrics registers the tripintel instruments on the global meter
// provider. It should be called after observability.Init().
func InitOTelMetrics() error {
	otelMetricsOnce.Do(func() {
		meter := otel.Meter("tripintel/metrics")

		_, err := meter.Int64ObservableGauge(
			"tripintel.plans.total",
			metric.WithDescription("Cumulative plan requests by outcome"),
			metric.WithUnit("{requests}"),
			metric.WithInt64Callback(planTotalsCallback),
		)
		if err != nil {
			log.Printf("metrics: failed to create plan totals gauge: %v", err)
			otelRegistrationError = err
			return
		}

		planLatencyHistogram, err = meter.Float64Histogram(
			"tripintel.plan.duration",
			metric.WithDescription("Plan request duration including upstream retries (ms)"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			log.Printf("metrics: failed to create plan latency histogram: %v", err)
			otelRegistrationError = err
			return
		}

		upstreamRetryCounter, err = meter.Int64Counter(
			"tripintel.upstream.retries",
			metric.WithDescription("Backoff sleeps before retrying the generative API"),
		)
		if err != nil {
			log.Printf("metrics: failed to create upstream retry counter: %v", err)
			otelRegistrationError = err
		}
	})
	return otelRegistrationError
}

// planTotalsCallback reports the in-process totals as gauge values.
func planTotalsCallback(_ context.Context, observer metric.Int64Observer) error {
	for outcome, count := range GetStats() {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("outcome", string(outcome)),
		))
	}
	return nil
}

func recordPlanLatency(ctx context.Context, outcome Outcome, duration time.Duration) {
	_ = InitOTelMetrics()
	if planLatencyHistogram != nil {
		planLatencyHistogram.Record(ctx, float64(duration.Milliseconds()),
			metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

func recordRetry(ctx context.Context, attempt int) {
	_ = InitOTelMetrics()
	if upstreamRetryCounter != nil {
		upstreamRetryCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempt", attempt)))
	}
}

// ResetOTelForTesting resets the OTel initialization state for testing purposes.
// This should only be used in tests.
func ResetOTelForTesting() {
	otelMetricsOnce = sync.Once{}
	otelRegistrationError = nil
	planLatencyHistogram = nil
	upstreamRetryCounter = nil
}
