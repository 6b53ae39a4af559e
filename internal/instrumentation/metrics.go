package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mikey/inbox-triage/internal/core"
)

const (
	attrStep   = "step"
	attrResult = "result"
	attrStatus = "status"
	attrBucket = "bucket"
	attrUser   = "user"

	noBucket = "none"
)

// Metrics records pipeline metrics. It implements core.Observer; the zero
// value records nothing.
type Metrics struct {
	stepsTotal    metric.Int64Counter
	stepDuration  metric.Float64Histogram
	emailsTotal   metric.Int64Counter
	pushesTotal   metric.Int64Counter
	batchesTotal  metric.Int64Counter
	batchDuration metric.Float64Histogram
	batchFailures metric.Int64Counter
	batchSkipped  metric.Int64Counter
}

var _ core.Observer = (*Metrics)(nil)

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.stepsTotal, err = meter.Int64Counter(
		"triage_steps_total",
		metric.WithDescription("Total number of collaborator calls by step and result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_steps_total counter: %w", err)
	}

	m.stepDuration, err = meter.Float64Histogram(
		"triage_step_duration_seconds",
		metric.WithDescription("Collaborator call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_step_duration_seconds histogram: %w", err)
	}

	m.emailsTotal, err = meter.Int64Counter(
		"triage_emails_total",
		metric.WithDescription("Total number of emails resolved, by final status and bucket"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_emails_total counter: %w", err)
	}

	m.pushesTotal, err = meter.Int64Counter(
		"triage_pushes_total",
		metric.WithDescription("Total number of push notifications delivered"),
		metric.WithUnit("{push}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_pushes_total counter: %w", err)
	}

	m.batchesTotal, err = meter.Int64Counter(
		"triage_batches_total",
		metric.WithDescription("Total number of poll cycles"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_batches_total counter: %w", err)
	}

	m.batchDuration, err = meter.Float64Histogram(
		"triage_batch_duration_seconds",
		metric.WithDescription("Poll cycle duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_batch_duration_seconds histogram: %w", err)
	}

	m.batchFailures, err = meter.Int64Counter(
		"triage_batch_errors_total",
		metric.WithDescription("Total number of errors reported by poll cycles"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_batch_errors_total counter: %w", err)
	}

	m.batchSkipped, err = meter.Int64Counter(
		"triage_emails_skipped_total",
		metric.WithDescription("Total number of emails left unprocessed by cancelled poll cycles"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_emails_skipped_total counter: %w", err)
	}

	return m, nil
}

// ObserveStep records one collaborator call
func (m *Metrics) ObserveStep(ctx context.Context, step, result string, duration time.Duration) {
	if m == nil || m.stepsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrStep, step),
		attribute.String(attrResult, result),
	)
	m.stepsTotal.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, duration.Seconds(), attrs)
}

// ObserveOutcome records the final state of one email
func (m *Metrics) ObserveOutcome(ctx context.Context, outcome *core.Outcome) {
	if m == nil || m.emailsTotal == nil {
		return
	}
	bucket := outcome.BucketSlug
	if outcome.BucketID == nil || bucket == "" {
		bucket = noBucket
	}
	m.emailsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, string(outcome.Status)),
		attribute.String(attrBucket, bucket),
	))
	if outcome.Pushed {
		m.pushesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrBucket, bucket)))
	}
}

// ObserveBatch records one poll cycle
func (m *Metrics) ObserveBatch(ctx context.Context, report *core.BatchReport) {
	if m == nil || m.batchesTotal == nil {
		return
	}
	user := metric.WithAttributes(attribute.String(attrUser, report.UserID))
	m.batchesTotal.Add(ctx, 1, user)
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		m.batchDuration.Record(ctx, report.FinishedAt.Sub(report.StartedAt).Seconds(), user)
	}
	if n := len(report.Errors); n > 0 {
		m.batchFailures.Add(ctx, int64(n), user)
	}
	if report.Skipped > 0 {
		m.batchSkipped.Add(ctx, int64(report.Skipped), user)
	}
}
