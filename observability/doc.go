// Package observability wires OpenTelemetry tracing and metrics into
// pipeline runs.
//
// Providers export over OTLP/HTTP:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("streamkit"))
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("streamkit"))
//	defer mp.Shutdown(ctx)
//
// Observe inserts a counting stage into a pipeline, and Run wraps a terminal
// call in a span that carries a run id:
//
//	metrics, _ := observability.NewMetrics(observability.Meter("streamkit"))
//	p := observability.Observe(pipeline.Of(1, 2, 3), "squares", "source", metrics)
//	err := observability.Run(ctx, "squares", metrics, func(ctx context.Context) error {
//	    out, err = pipeline.Collect(ctx, p)
//	    return err
//	})
//
// A nil *Metrics is valid everywhere and records nothing.
package observability
