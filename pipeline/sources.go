package pipeline

import "context"

// Integer is the set of integer types accepted by Count and Range.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Generate creates an infinite pipeline that calls fn for every value.
// An error from fn ends the run.
func Generate[T any](fn func(ctx context.Context) (T, error)) *Pipeline[T] {
	return &Pipeline[T]{
		unbounded: true,
		create: func(_ context.Context) Iterator[T] {
			return &generateIter[T]{fn: fn}
		},
	}
}

// Iterate creates the infinite pipeline seed, next(seed), next(next(seed)), ...
func Iterate[T any](seed T, next func(T) T) *Pipeline[T] {
	return &Pipeline[T]{
		unbounded: true,
		create: func(_ context.Context) Iterator[T] {
			return &iterateIter[T]{current: seed, next: next}
		},
	}
}

// Count creates the infinite ascending sequence start, start+1, start+2, ...
func Count[T Integer](start T) *Pipeline[T] {
	return Iterate(start, func(n T) T { return n + 1 })
}

// Range creates the finite sequence of integers in [start, end).
func Range[T Integer](start, end T) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &rangeIter[T]{next: start, end: end}
		},
	}
}

type generateIter[T any] struct {
	fn func(ctx context.Context) (T, error)
}

func (it *generateIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, err := it.fn(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *generateIter[T]) Close() error { return nil }

type iterateIter[T any] struct {
	current T
	next    func(T) T
	started bool
}

func (it *iterateIter[T]) Next(_ context.Context) (result T, ok bool, err error) {
	if it.started {
		it.current = it.next(it.current)
	}
	it.started = true
	return it.current, true, nil
}

func (it *iterateIter[T]) Close() error { return nil }

type rangeIter[T Integer] struct {
	next T
	end  T
}

func (it *rangeIter[T]) Next(_ context.Context) (result T, ok bool, err error) {
	if it.next >= it.end {
		var zero T
		return zero, false, nil
	}
	val := it.next
	it.next++
	return val, true, nil
}

func (it *rangeIter[T]) Close() error { return nil }
