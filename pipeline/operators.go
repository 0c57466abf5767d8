package pipeline

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/streamkit/errors"
)

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return Through(p, func(source Iterator[I]) Iterator[O] {
		return &mapIter[I, O]{source: source, fn: fn}
	})
}

// Map transforms each value using fn without changing the element type.
// Use the package-level Map to convert to another type.
func (p *Pipeline[T]) Map(fn func(context.Context, T) (T, error)) *Pipeline[T] {
	return Map(p, fn)
}

// FlatMap transforms each value into an iterator and flattens the results
// by one level.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (Iterator[O], error)) *Pipeline[O] {
	return Through(p, func(source Iterator[I]) Iterator[O] {
		return &flatMapIter[I, O]{source: source, fn: fn}
	})
}

// Flatten transforms each value into a slice and yields its elements in order.
func Flatten[I, O any](p *Pipeline[I], fn func(context.Context, I) ([]O, error)) *Pipeline[O] {
	return FlatMap(p, func(ctx context.Context, in I) (Iterator[O], error) {
		items, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return &sliceIter[O]{items: items}, nil
	})
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &filterIter[T]{source: source, fn: fn}
	})
}

// Filter keeps only values that satisfy the predicate.
func (p *Pipeline[T]) Filter(fn func(T) bool) *Pipeline[T] {
	return Filter(p, fn)
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &tapIter[T]{source: source, fn: fn}
	})
}

// Tap calls fn as a side-effect for each value.
func (p *Pipeline[T]) Tap(fn func(context.Context, T) error) *Pipeline[T] {
	return Tap(p, fn)
}

// TapEach calls fns[i] on element i of each slice as a side-effect, then
// passes the slice through unchanged. Useful after FanOut. Elements without
// a matching fn, and fns without a matching element, are skipped.
func TapEach[T any](p *Pipeline[[]T], fns ...func(context.Context, T) error) *Pipeline[[]T] {
	return Through(p, func(source Iterator[[]T]) Iterator[[]T] {
		return &tapEachIter[T]{source: source, fns: fns}
	})
}

// FanOut applies every fn to each value and yields their results as one
// slice in the order of fns. The fns for one value run concurrently, and the
// next value is not pulled until all of them have returned.
func FanOut[I, O any](p *Pipeline[I], fns ...func(context.Context, I) (O, error)) *Pipeline[[]O] {
	return Through(p, func(source Iterator[I]) Iterator[[]O] {
		return &fanOutIter[I, O]{source: source, fns: fns}
	})
}

// Distinct yields each value on its first occurrence only.
// The set of seen values lives for one run and grows with the number of
// distinct values.
func Distinct[T comparable](p *Pipeline[T]) *Pipeline[T] {
	return DistinctBy(p, func(v T) T { return v })
}

// DistinctBy yields the first value for each distinct key.
func DistinctBy[T any, K comparable](p *Pipeline[T], key func(T) K) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &distinctIter[T, K]{source: source, key: key, seen: make(map[K]struct{})}
	})
}

// SortBy yields values ordered by key, ascending unless reverse is set.
// The sort is stable. The first pull drains the whole upstream into memory,
// so an unbounded upstream fails with an UNBOUNDED_MATERIALIZATION error.
func SortBy[T any, K cmp.Ordered](p *Pipeline[T], key func(T) K, reverse bool) *Pipeline[T] {
	compare := func(a, b T) int { return cmp.Compare(key(a), key(b)) }
	if reverse {
		compare = func(a, b T) int { return cmp.Compare(key(b), key(a)) }
	}
	return sortWith(p, "SortBy", compare)
}

// Sorted yields values in ascending natural order.
func Sorted[T cmp.Ordered](p *Pipeline[T]) *Pipeline[T] {
	return sortWith(p, "Sorted", cmp.Compare[T])
}

// SortFunc yields values ordered by compare, which follows the slices.SortFunc
// contract. The first pull drains the whole upstream.
func (p *Pipeline[T]) SortFunc(compare func(a, b T) int) *Pipeline[T] {
	return sortWith(p, "SortFunc", compare)
}

func sortWith[T any](p *Pipeline[T], op string, compare func(a, b T) int) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		if p.unbounded {
			return &errIter[T]{err: errors.UnboundedMaterialization(op), source: source}
		}
		return &sortIter[T]{source: source, compare: compare}
	})
}

// Limit yields at most n values. Once n values have been yielded the
// upstream is never pulled again, so Limit bounds an infinite source.
func (p *Pipeline[T]) Limit(n int) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitIter[T]{source: p.create(ctx), remaining: n}
		},
	}
}

// Skip discards the first n values and yields the rest.
func (p *Pipeline[T]) Skip(n int) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &skipIter[T]{source: source, remaining: n}
	})
}

// MaxElements fails with an UNBOUNDED_MATERIALIZATION error once more than
// n values have passed; exactly n succeed. Zero or less lets everything
// through. Unlike the WithMaxElements terminal option it counts values
// before later stages such as Chunk regroup them.
func (p *Pipeline[T]) MaxElements(n int) *Pipeline[T] {
	if n <= 0 {
		return p
	}
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &maxElementsIter[T]{source: source, max: n}
	})
}

// TakeWhile yields values until pred first returns false.
// The result is treated as bounded: pred is expected to end the sequence.
func (p *Pipeline[T]) TakeWhile(pred func(T) bool) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &takeWhileIter[T]{source: p.create(ctx), pred: pred}
		},
	}
}

// DropWhile discards values while pred holds, then yields everything after.
func (p *Pipeline[T]) DropWhile(pred func(T) bool) *Pipeline[T] {
	return Through(p, func(source Iterator[T]) Iterator[T] {
		return &dropWhileIter[T]{source: source, pred: pred, dropping: true}
	})
}

// Concat joins multiple pipelines sequentially.
// All values from the first pipeline are yielded before the second, etc.
// Upstream iterators are created lazily, when the previous one is exhausted.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	unbounded := false
	for _, p := range pipelines {
		unbounded = unbounded || p.unbounded
	}
	return &Pipeline[T]{
		unbounded: unbounded,
		create: func(ctx context.Context) Iterator[T] {
			return &concatIter[T]{ctx: ctx, pipelines: pipelines}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (Iterator[O], error)
	current Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				var zero O
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			var zero O
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			var zero O
			return zero, false, err
		}
		it.current = inner
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
	}
	return it.source.Close()
}

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type tapEachIter[T any] struct {
	source Iterator[[]T]
	fns    []func(context.Context, T) error
}

func (it *tapEachIter[T]) Next(ctx context.Context) (result []T, ok bool, err error) {
	vals, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	for i := range min(len(it.fns), len(vals)) {
		if err := it.fns[i](ctx, vals[i]); err != nil {
			return nil, false, err
		}
	}
	return vals, true, nil
}

func (it *tapEachIter[T]) Close() error { return it.source.Close() }

type fanOutIter[I, O any] struct {
	source Iterator[I]
	fns    []func(context.Context, I) (O, error)
}

func (it *fanOutIter[I, O]) Next(ctx context.Context) (result []O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	results := make([]O, len(it.fns))
	g, gctx := errgroup.WithContext(ctx)
	for i, fn := range it.fns {
		g.Go(func() error {
			out, err := fn(gctx, val)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (it *fanOutIter[I, O]) Close() error { return it.source.Close() }

type distinctIter[T any, K comparable] struct {
	source Iterator[T]
	key    func(T) K
	seen   map[K]struct{}
}

func (it *distinctIter[T, K]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		k := it.key(val)
		if _, dup := it.seen[k]; dup {
			continue
		}
		it.seen[k] = struct{}{}
		return val, true, nil
	}
}

func (it *distinctIter[T, K]) Close() error { return it.source.Close() }

type sortIter[T any] struct {
	source  Iterator[T]
	compare func(a, b T) int
	sorted  []T
	index   int
	loaded  bool
}

func (it *sortIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if !it.loaded {
		for {
			val, ok, err := it.source.Next(ctx)
			if err != nil {
				var zero T
				return zero, false, err
			}
			if !ok {
				break
			}
			it.sorted = append(it.sorted, val)
		}
		slices.SortStableFunc(it.sorted, it.compare)
		it.loaded = true
	}
	if it.index >= len(it.sorted) {
		var zero T
		return zero, false, nil
	}
	val := it.sorted[it.index]
	it.index++
	return val, true, nil
}

func (it *sortIter[T]) Close() error { return it.source.Close() }

type limitIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *limitIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, false, err
	}
	it.remaining--
	return val, true, nil
}

func (it *limitIter[T]) Close() error { return it.source.Close() }

type skipIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *skipIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for it.remaining > 0 {
		_, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			var zero T
			return zero, false, err
		}
		it.remaining--
	}
	return it.source.Next(ctx)
}

func (it *skipIter[T]) Close() error { return it.source.Close() }

type maxElementsIter[T any] struct {
	source Iterator[T]
	max    int
	seen   int
}

func (it *maxElementsIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	it.seen++
	if it.seen > it.max {
		var zero T
		return zero, false, errors.UnboundedMaterialization("MaxElements").WithDetail("max_elements", it.max)
	}
	return val, true, nil
}

func (it *maxElementsIter[T]) Close() error { return it.source.Close() }

type takeWhileIter[T any] struct {
	source Iterator[T]
	pred   func(T) bool
	done   bool
}

func (it *takeWhileIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if it.done {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, false, err
	}
	if !it.pred(val) {
		it.done = true
		var zero T
		return zero, false, nil
	}
	return val, true, nil
}

func (it *takeWhileIter[T]) Close() error { return it.source.Close() }

type dropWhileIter[T any] struct {
	source   Iterator[T]
	pred     func(T) bool
	dropping bool
}

func (it *dropWhileIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.dropping && it.pred(val) {
			continue
		}
		it.dropping = false
		return val, true, nil
	}
}

func (it *dropWhileIter[T]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	ctx       context.Context
	pipelines []*Pipeline[T]
	index     int
	current   Iterator[T]
}

func (it *concatIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for it.index < len(it.pipelines) {
		if it.current == nil {
			it.current = it.pipelines[it.index].create(it.ctx)
		}
		val, ok, err := it.current.Next(ctx)
		if err != nil {
			return val, false, err
		}
		if ok {
			return val, true, nil
		}
		if err := it.current.Close(); err != nil {
			var zero T
			return zero, false, err
		}
		it.current = nil
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	if it.current != nil {
		return it.current.Close()
	}
	return nil
}
