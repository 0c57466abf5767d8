package observability

import (
	"context"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/pipeline"
)

// Observe inserts a pass-through stage that counts the elements and errors
// flowing out of p. It pulls exactly what its consumer pulls, so laziness
// and boundedness of p are unchanged.
func Observe[T any](p *pipeline.Pipeline[T], name, stage string, m *Metrics) *pipeline.Pipeline[T] {
	return pipeline.Through(p, func(source pipeline.Iterator[T]) pipeline.Iterator[T] {
		return &observedIter[T]{source: source, pipeline: name, stage: stage, metrics: m}
	})
}

type observedIter[T any] struct {
	source   pipeline.Iterator[T]
	pipeline string
	stage    string
	metrics  *Metrics
}

func (it *observedIter[T]) Next(ctx context.Context) (T, bool, error) {
	v, ok, err := it.source.Next(ctx)
	switch {
	case err != nil:
		it.metrics.RecordError(ctx, it.pipeline, it.stage, errorCode(err))
	case ok:
		it.metrics.RecordElements(ctx, it.pipeline, it.stage, 1)
	}
	return v, ok, err
}

func (it *observedIter[T]) Close() error { return it.source.Close() }

// CodeExternal labels errors that did not originate in streamkit, such as
// failures returned by user callbacks.
const CodeExternal = "EXTERNAL"

func errorCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return CodeExternal
}
