package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for worker metrics.
const meterName = "github.com/cuongbtq/issue-runner/internal/worker"

// Execution outcomes recorded on every metric point.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeNoHandler = "no_handler"
)

// Metrics records per-job execution metrics.
//
// Instruments:
//   - issuerunner.job.duration (Float64Histogram): handler time in seconds
//   - issuerunner.job.executions (Int64Counter): executed jobs
//
// Both carry the attributes job_name and outcome.
type Metrics struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
}

// NewMetrics uses the global MeterProvider; without one the instruments are noops.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	// On error the API hands back noop instruments.
	duration, _ := meter.Float64Histogram(
		"issuerunner.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"issuerunner.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)
	return &Metrics{duration: duration, executions: executions}
}

// Record adds one execution. A nil Metrics records nothing.
func (m *Metrics) Record(ctx context.Context, jobName, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("job_name", jobName),
		attribute.String("outcome", outcome),
	)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.executions.Add(ctx, 1, attrs)
}
