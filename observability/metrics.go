package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricElements    = "pipeline.elements"
	MetricErrors      = "pipeline.errors"
	MetricRuns        = "pipeline.runs"
	MetricRunDuration = "pipeline.run.duration"
	MetricRunsActive  = "pipeline.runs.active"
)

// Metrics holds the pipeline instruments. All methods are no-ops on a nil
// receiver.
type Metrics struct {
	elements    metric.Int64Counter
	errors      metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	runsActive  metric.Int64UpDownCounter
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	elements, err := meter.Int64Counter(MetricElements,
		metric.WithDescription("Elements emitted by an observed stage"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricElements, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Errors surfaced by an observed stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrors, err)
	}

	runs, err := meter.Int64Counter(MetricRuns,
		metric.WithDescription("Completed pipeline runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRuns, err)
	}

	runDuration, err := meter.Float64Histogram(MetricRunDuration,
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRunDuration, err)
	}

	runsActive, err := meter.Int64UpDownCounter(MetricRunsActive,
		metric.WithDescription("Pipeline runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRunsActive, err)
	}

	return &Metrics{
		elements:    elements,
		errors:      errorTotal,
		runs:        runs,
		runDuration: runDuration,
		runsActive:  runsActive,
	}, nil
}

// RecordElements adds n elements emitted by stage.
func (m *Metrics) RecordElements(ctx context.Context, pipeline, stage string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.elements.Add(ctx, n, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrStage, stage),
	))
}

// RecordError counts an error surfaced by stage.
func (m *Metrics) RecordError(ctx context.Context, pipeline, stage, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrStage, stage),
		attribute.String(AttrErrorCode, code),
	))
}

// RecordRunStart marks a run as in progress.
func (m *Metrics) RecordRunStart(ctx context.Context, pipeline string) {
	if m == nil {
		return
	}
	m.runsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
}

// RecordRunEnd records a finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, pipeline, status string, duration time.Duration) {
	if m == nil {
		return
	}
	name := attribute.String(AttrPipeline, pipeline)
	m.runsActive.Add(ctx, -1, metric.WithAttributes(name))
	m.runs.Add(ctx, 1, metric.WithAttributes(name, attribute.String(AttrStatus, status)))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(name))
}
