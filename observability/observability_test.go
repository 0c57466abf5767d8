package observability

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/pipeline"
)

// newTestMetrics returns metrics backed by a manual reader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sumOf returns the total of an Int64 sum instrument for points matching attrs.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range data.DataPoints {
				if hasAll(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAll(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

// recordSpans installs a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

// captureLogs routes the global logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.GetGlobalLogger()
	logger.SetGlobalLogger(logger.New(&logger.Config{Level: "debug", Format: "json", Writer: &buf}, "test"))
	t.Cleanup(func() { logger.SetGlobalLogger(prev) })
	return &buf
}

func TestDefaultConfigs(t *testing.T) {
	tc := DefaultTracerConfig("streamkit")
	if tc.ServiceName != "streamkit" || tc.Endpoint != "localhost:4318" || tc.SampleRate != 1.0 || !tc.Insecure {
		t.Errorf("unexpected tracer defaults: %+v", tc)
	}
	mc := DefaultMeterConfig("streamkit")
	if mc.Interval != 15*time.Second {
		t.Errorf("expected 15s interval, got %v", mc.Interval)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "ParentBased"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); !strings.HasPrefix(got, tc.want) {
			t.Errorf("sampler(%v) = %s, want prefix %s", tc.rate, got, tc.want)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("streamkit", "1.2.3", "staging")
	if err != nil {
		t.Fatal(err)
	}
	set := res.Set()
	if v, _ := set.Value(AttrServiceName); v.AsString() != "streamkit" {
		t.Errorf("service.name = %v", v.AsString())
	}
	if v, _ := set.Value(AttrEnvironment); v.AsString() != "staging" {
		t.Errorf("environment = %v", v.AsString())
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.RecordElements(ctx, "p", "s", 3)
	m.RecordError(ctx, "p", "s", "EXTERNAL")
	m.RecordRunStart(ctx, "p")
	m.RecordRunEnd(ctx, "p", StatusOK, time.Millisecond)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordElements(ctx, "p", "s", 1)
	m.RecordError(ctx, "p", "s", "x")
	m.RecordRunStart(ctx, "p")
	m.RecordRunEnd(ctx, "p", StatusOK, time.Second)
}

func TestObserve_CountsElements(t *testing.T) {
	m, reader := newTestMetrics(t)
	p := Observe(pipeline.Of(1, 2, 3, 4, 5), "evens", "source", m).
		Filter(func(n int) bool { return n%2 == 0 })
	p = Observe(p, "evens", "filtered", m)

	got, err := pipeline.Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if n := sumOf(t, reader, MetricElements, attribute.String(AttrStage, "source")); n != 5 {
		t.Errorf("source elements = %d, want 5", n)
	}
	if n := sumOf(t, reader, MetricElements, attribute.String(AttrStage, "filtered")); n != 2 {
		t.Errorf("filtered elements = %d, want 2", n)
	}
}

func TestObserve_KeepsLazinessAndBounds(t *testing.T) {
	m, reader := newTestMetrics(t)
	observed := Observe(pipeline.Count(0), "naturals", "source", m)
	if !observed.IsUnbounded() {
		t.Fatal("observing must not bound an infinite source")
	}
	if _, err := pipeline.Collect(context.Background(), observed.Limit(3)); err != nil {
		t.Fatal(err)
	}
	if n := sumOf(t, reader, MetricElements); n != 3 {
		t.Errorf("pulled %d elements, want 3", n)
	}
}

func TestObserve_CountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	boom := stderrors.New("boom")
	p := pipeline.Of(1, 2).Map(func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	_, err := pipeline.Collect(context.Background(), Observe(p, "failing", "mapped", m))
	if err != boom {
		t.Fatalf("expected callback error unchanged, got %v", err)
	}
	if n := sumOf(t, reader, MetricErrors, attribute.String(AttrErrorCode, CodeExternal)); n != 1 {
		t.Errorf("errors = %d, want 1", n)
	}

	_, err = pipeline.ReduceFirst(context.Background(), Observe(pipeline.Empty[int](), "empty", "source", m),
		func(a, b int) (int, error) { return a + b, nil })
	if !stderrors.Is(err, pipeline.ErrEmptySequence) {
		t.Fatalf("expected EMPTY_SEQUENCE, got %v", err)
	}
}

func TestRun_Success(t *testing.T) {
	sr := recordSpans(t)
	logs := captureLogs(t)
	m, reader := newTestMetrics(t)

	var runID string
	var out []int
	err := Run(context.Background(), "squares", m, func(ctx context.Context) error {
		runID = RunFromContext(ctx).ID
		var err error
		out, err = pipeline.Collect(ctx, pipeline.Map(pipeline.Range(1, 4), func(_ context.Context, n int) (int, error) {
			return n * n, nil
		}))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[2] != 9 {
		t.Errorf("out = %v", out)
	}
	if runID == "" {
		t.Fatal("expected a run id inside the run")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != SpanPipelineRun {
		t.Errorf("span name = %s", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("span status = %v", span.Status())
	}
	attrs := attribute.NewSet(span.Attributes()...)
	if v, _ := attrs.Value(AttrRunID); v.AsString() != runID {
		t.Errorf("run id attribute = %q, want %q", v.AsString(), runID)
	}

	if n := sumOf(t, reader, MetricRuns, attribute.String(AttrStatus, StatusOK)); n != 1 {
		t.Errorf("ok runs = %d, want 1", n)
	}
	if n := sumOf(t, reader, MetricRunsActive); n != 0 {
		t.Errorf("active runs = %d, want 0", n)
	}
	if !strings.Contains(logs.String(), runID) || !strings.Contains(logs.String(), "run finished") {
		t.Errorf("log missing run id: %s", logs.String())
	}
}

func TestRun_Failure(t *testing.T) {
	sr := recordSpans(t)
	logs := captureLogs(t)
	m, reader := newTestMetrics(t)

	err := Run(context.Background(), "naturals", m, func(ctx context.Context) error {
		_, err := pipeline.Collect(ctx, pipeline.Count(0))
		return err
	})
	if !stderrors.Is(err, pipeline.ErrUnboundedMaterialization) {
		t.Fatalf("expected UNBOUNDED_MATERIALIZATION, got %v", err)
	}

	span := sr.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v", span.Status())
	}
	attrs := attribute.NewSet(span.Attributes()...)
	if v, _ := attrs.Value(AttrErrorCode); v.AsString() != "UNBOUNDED_MATERIALIZATION" {
		t.Errorf("error code attribute = %q", v.AsString())
	}
	if n := sumOf(t, reader, MetricRuns, attribute.String(AttrStatus, StatusError)); n != 1 {
		t.Errorf("error runs = %d, want 1", n)
	}
	if !strings.Contains(logs.String(), "run failed") {
		t.Errorf("expected failure log, got %s", logs.String())
	}
}

func TestRunFromContext_Outside(t *testing.T) {
	if RunFromContext(context.Background()) != nil {
		t.Error("expected nil outside a run")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	sr := recordSpans(t)
	ctx, span := StartSpan(context.Background(), "attrs")
	SetSpanAttribute(ctx, "s", "v")
	SetSpanAttribute(ctx, "i", 42)
	SetSpanAttribute(ctx, "i64", int64(7))
	SetSpanAttribute(ctx, "f", 0.5)
	SetSpanAttribute(ctx, "b", true)
	SetSpanAttribute(ctx, "other", []int{1})
	span.End()

	attrs := attribute.NewSet(sr.Ended()[0].Attributes()...)
	if attrs.Len() != 6 {
		t.Errorf("expected 6 attributes, got %d", attrs.Len())
	}
	if v, _ := attrs.Value("other"); v.AsString() != "[1]" {
		t.Errorf("fallback attribute = %q", v.AsString())
	}

	SetSpanAttribute(context.Background(), "key", "value")
}

func TestInitProviders(t *testing.T) {
	ctx := context.Background()
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	for _, insecure := range []bool{true, false} {
		tc := DefaultTracerConfig("test")
		tc.Insecure = insecure
		tp, err := InitTracer(ctx, tc)
		if err != nil {
			t.Fatalf("InitTracer: %v", err)
		}
		_ = tp.Shutdown(shutdownCtx)

		mc := DefaultMeterConfig("test")
		mc.Insecure = insecure
		mp, err := InitMeter(ctx, mc)
		if err != nil {
			t.Fatalf("InitMeter: %v", err)
		}
		_ = mp.Shutdown(shutdownCtx)
	}
}
