// Package pipeline provides composable, pull-based data pipeline operators.
//
// Pipelines are lazy: no work happens until a terminal operation pulls
// values. Each stage pulls from the previous stage on demand and evaluates
// its function at most once per value, so Limit can bound an infinite
// source without over-reading it.
//
// Pipelines are immutable. Every operator returns a new Pipeline that wraps
// the previous one, and every terminal builds a fresh iterator chain, so a
// pipeline value can be branched and run repeatedly.
//
// # Sources
//
//   - FromSlice, Of, Empty, Range: finite
//   - From, FromFunc, FromSeq: adapt existing iterators and sequences
//   - Generate, Iterate, Count: infinite (marked unbounded)
//
// # Operators
//
//   - Map, FlatMap, Flatten: transform values
//   - Filter, Distinct, DistinctBy: drop values
//   - SortBy, Sorted, SortFunc: order values (buffers the whole upstream)
//   - Limit, Skip, TakeWhile, DropWhile: slice the sequence
//   - Tap: side-effect without altering the value
//   - Concat, Chunk: join and group
//   - Parallel: concurrent Map with a worker pool (order NOT preserved)
//   - Through: plug in a custom Iterator stage
//
// # Terminals
//
// Collect (ToList), ToSet, Reduce, ReduceFirst, ForEach, Drain, Len, First,
// plus Iter and All for manual iteration. Materializing terminals reject an
// unbounded pipeline with an UNBOUNDED_MATERIALIZATION error before pulling
// anything; apply Limit first. Errors returned by user functions reach the
// caller unchanged and no partial result is returned.
//
// # Usage
//
//	evens := pipeline.Of(1, 2, 2, 3, 4, 5, 6).Filter(func(n int) bool { return n%2 == 0 })
//	squares := evens.Map(func(_ context.Context, n int) (int, error) { return n * n, nil })
//	got, err := pipeline.Collect(ctx, pipeline.Distinct(squares).Limit(2))
//	// got == []int{4, 16}
package pipeline
