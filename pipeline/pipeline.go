package pipeline

import (
	"context"
	"iter"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Pipeline represents a lazy, pull-based data pipeline.
// No work happens until values are pulled by a terminal operation.
//
// A Pipeline is an immutable stage descriptor: every operation returns a new
// Pipeline wrapping the previous one, and every terminal call builds a fresh
// iterator chain. A single run is not safe for concurrent use, but the same
// Pipeline value may be run any number of times, including concurrently.
type Pipeline[T any] struct {
	create    func(ctx context.Context) Iterator[T]
	unbounded bool
}

// Runnable is a fully-configured pipeline ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the pipeline until completion or the first error.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// --- Constructors ---

// From creates a pipeline from an existing Iterator.
// The iterator is shared, so the pipeline can only be run once.
func From[T any](iter Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return iter
		},
	}
}

// FromSlice creates a pipeline from a slice of values.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// Of creates a pipeline from its arguments.
func Of[T any](items ...T) *Pipeline[T] {
	return FromSlice(items)
}

// Empty returns a pipeline with no values.
func Empty[T any]() *Pipeline[T] {
	return FromSlice[T](nil)
}

// FromFunc creates a pipeline from a factory that produces an Iterator.
// The factory is called once per run.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: fn}
}

// FromSeq creates a pipeline from a range-over-func sequence.
// Each run pulls from a fresh call of seq.
func FromSeq[T any](seq iter.Seq[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			next, stop := iter.Pull(seq)
			return &pullIter[T]{next: next, stop: stop}
		},
	}
}

// Through applies a custom stage built directly on the upstream Iterator.
// The unbounded mark of p carries over to the result.
func Through[I, O any](p *Pipeline[I], stage func(Iterator[I]) Iterator[O]) *Pipeline[O] {
	return &Pipeline[O]{
		unbounded: p.unbounded,
		create: func(ctx context.Context) Iterator[O] {
			return stage(p.create(ctx))
		},
	}
}

// Unbounded returns a copy of p marked as infinite. Materializing terminals
// reject unbounded pipelines unless a Limit has been applied.
func (p *Pipeline[T]) Unbounded() *Pipeline[T] {
	return &Pipeline[T]{create: p.create, unbounded: true}
}

// IsUnbounded reports whether p is known to produce an infinite sequence.
func (p *Pipeline[T]) IsUnbounded() bool {
	return p.unbounded
}

// Iter returns the raw Iterator for this pipeline. The caller must Close() it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}

// All returns the pipeline as a range-over-func sequence. An error ends the
// sequence and is yielded with the zero value as the last pair.
//
//	for v, err := range p.All(ctx) {
//	    if err != nil { ... }
//	}
func (p *Pipeline[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := p.create(ctx)
		defer it.Close()
		for {
			val, ok, err := it.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(val, nil) {
				return
			}
		}
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type pullIter[T any] struct {
	next func() (T, bool)
	stop func()
}

func (it *pullIter[T]) Next(_ context.Context) (T, bool, error) {
	val, ok := it.next()
	return val, ok, nil
}

func (it *pullIter[T]) Close() error {
	it.stop()
	return nil
}

// errIter fails on the first pull.
type errIter[T any] struct {
	err    error
	source Iterator[T]
}

func (it *errIter[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *errIter[T]) Close() error {
	if it.source != nil {
		return it.source.Close()
	}
	return nil
}
