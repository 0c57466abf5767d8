package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/streamkit/logger"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RunInfo identifies one execution of a pipeline.
type RunInfo struct {
	ID        string
	Pipeline  string
	StartTime time.Time
}

type runInfoKey struct{}

// RunFromContext returns the run started by Run, or nil outside a run.
func RunFromContext(ctx context.Context) *RunInfo {
	if info, ok := ctx.Value(runInfoKey{}).(*RunInfo); ok {
		return info
	}
	return nil
}

// Run executes fn, typically one terminal operation, inside a
// "pipeline.run" span. It assigns the run a UUID, records run metrics on m
// and logs the outcome. The error from fn is returned unchanged.
func Run(ctx context.Context, name string, m *Metrics, fn func(context.Context) error) error {
	info := &RunInfo{ID: uuid.NewString(), Pipeline: name, StartTime: time.Now()}
	ctx = context.WithValue(ctx, runInfoKey{}, info)

	ctx, span := StartSpan(ctx, SpanPipelineRun, trace.WithAttributes(
		attribute.String(AttrPipeline, name),
		attribute.String(AttrRunID, info.ID),
	))
	defer span.End()

	log := logger.Get("pipeline").WithContext(ctx).WithFields(logger.Fields(
		logger.FieldPipeline, name,
		logger.FieldRunID, info.ID,
	))
	log.Debug("run started")
	m.RecordRunStart(ctx, name)

	err := fn(ctx)

	duration := time.Since(info.StartTime)
	status := StatusOK
	if err != nil {
		status = StatusError
		code := errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorCode, code))
		log.WithError(err).Error("run failed", logger.Fields(
			logger.FieldCode, code,
			logger.FieldDuration, duration.Milliseconds(),
		))
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info("run finished", logger.Fields(logger.FieldDuration, duration.Milliseconds()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	m.RecordRunEnd(ctx, name, status, duration)
	return err
}
