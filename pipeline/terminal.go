package pipeline

import (
	"context"

	"github.com/kbukum/streamkit/errors"
)

// Sentinels for errors.Is. They match any error carrying the same code.
var (
	ErrEmptySequence            = errors.New(errors.ErrCodeEmptySequence, "sequence has no elements")
	ErrUnboundedMaterialization = errors.New(errors.ErrCodeUnboundedMaterialization, "unbounded sequence")
)

// TerminalOption configures a materializing terminal operation.
type TerminalOption func(*terminalConfig)

type terminalConfig struct {
	maxElements int
}

// WithMaxElements caps how many values a terminal may pull. Pulling more
// fails with an UNBOUNDED_MATERIALIZATION error. Zero or less disables the cap.
// Use it for sources whose size is unknown, such as From or FromSeq.
func WithMaxElements(n int) TerminalOption {
	return func(c *terminalConfig) { c.maxElements = n }
}

// consume pulls every value of p into fn and always closes the iterator.
// Unbounded pipelines are rejected before anything is pulled.
func consume[T any](ctx context.Context, p *Pipeline[T], op string, opts []TerminalOption, fn func(context.Context, T) error) error {
	if p.unbounded {
		return errors.UnboundedMaterialization(op)
	}
	var cfg terminalConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	iter := p.create(ctx)
	defer iter.Close()
	pulled := 0
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pulled++
		if cfg.maxElements > 0 && pulled > cfg.maxElements {
			return errors.UnboundedMaterialization(op).WithDetail("max_elements", cfg.maxElements)
		}
		if err := fn(ctx, val); err != nil {
			return err
		}
	}
}

// Drain creates a Runnable that pulls all values and sends each to sink.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error, opts ...TerminalOption) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			return consume(ctx, p, "Drain", opts, sink)
		},
	}
}

// Collect runs the pipeline and returns all values as a slice.
// On error no partial result is returned.
func Collect[T any](ctx context.Context, p *Pipeline[T], opts ...TerminalOption) ([]T, error) {
	result := make([]T, 0)
	err := consume(ctx, p, "Collect", opts, func(_ context.Context, v T) error {
		result = append(result, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ToList is an alias for Collect.
func ToList[T any](ctx context.Context, p *Pipeline[T], opts ...TerminalOption) ([]T, error) {
	return Collect(ctx, p, opts...)
}

// ToSet runs the pipeline and returns the distinct values as a set.
func ToSet[T comparable](ctx context.Context, p *Pipeline[T], opts ...TerminalOption) (map[T]struct{}, error) {
	result := make(map[T]struct{})
	err := consume(ctx, p, "ToSet", opts, func(_ context.Context, v T) error {
		result[v] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reduce folds the values left to right, starting from init.
// An empty pipeline returns init.
func Reduce[T, R any](ctx context.Context, p *Pipeline[T], init R, fn func(R, T) (R, error), opts ...TerminalOption) (R, error) {
	acc := init
	err := consume(ctx, p, "Reduce", opts, func(_ context.Context, v T) error {
		next, err := fn(acc, v)
		if err != nil {
			return err
		}
		acc = next
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return acc, nil
}

// ReduceFirst folds the values left to right, seeded with the first value.
// An empty pipeline fails with an EMPTY_SEQUENCE error.
func ReduceFirst[T any](ctx context.Context, p *Pipeline[T], fn func(T, T) (T, error), opts ...TerminalOption) (T, error) {
	var acc T
	seeded := false
	err := consume(ctx, p, "ReduceFirst", opts, func(_ context.Context, v T) error {
		if !seeded {
			acc, seeded = v, true
			return nil
		}
		next, err := fn(acc, v)
		if err != nil {
			return err
		}
		acc = next
		return nil
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if !seeded {
		return zero, errors.EmptySequence("ReduceFirst")
	}
	return acc, nil
}

// ForEach pulls all values and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error, opts ...TerminalOption) error {
	return consume(ctx, p, "ForEach", opts, fn)
}

// Len runs the pipeline and returns the number of values.
func Len[T any](ctx context.Context, p *Pipeline[T], opts ...TerminalOption) (int, error) {
	n := 0
	err := consume(ctx, p, "Len", opts, func(context.Context, T) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// First returns the first value, pulling exactly once. It is allowed on
// unbounded pipelines. An empty pipeline fails with an EMPTY_SEQUENCE error.
func First[T any](ctx context.Context, p *Pipeline[T]) (T, error) {
	iter := p.create(ctx)
	defer iter.Close()
	val, ok, err := iter.Next(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		var zero T
		return zero, errors.EmptySequence("First")
	}
	return val, nil
}
