package pipeline

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParallel(t *testing.T) {
	p := FromSlice([]int{1, 2, 3, 4, 5})
	doubled := Parallel(p, 3, func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	got, err := Collect(context.Background(), doubled)
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(got) // order not guaranteed
	want := []int{2, 4, 6, 8, 10}
	if !intSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParallel_Error(t *testing.T) {
	errWorker := errors.New("worker failed")
	p := FromSlice([]int{1, 2, 3, 4, 5})
	failing := Parallel(p, 2, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errWorker
		}
		return n, nil
	})
	_, err := Collect(context.Background(), failing)
	if !errors.Is(err, errWorker) {
		t.Fatalf("expected worker error, got %v", err)
	}
}

func TestParallel_LimitStopsInfiniteSource(t *testing.T) {
	squares := Parallel(Count(0), 4, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	if !squares.IsUnbounded() {
		t.Fatal("Parallel over an infinite source must stay unbounded")
	}
	got, err := Collect(context.Background(), squares.Limit(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 values, got %v", got)
	}
}

func TestParallel_ZeroWorkersDefaultsToOne(t *testing.T) {
	got, err := Collect(context.Background(), Parallel(Of(1, 2, 3), 0, func(_ context.Context, n int) (int, error) {
		return n, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	// A single worker keeps order.
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestParallel_CloseWithoutDraining(t *testing.T) {
	ctx := context.Background()
	iter := Parallel(Count(0), 2, func(_ context.Context, n int) (int, error) {
		return n, nil
	}).Iter(ctx)
	if _, ok, err := iter.Next(ctx); !ok || err != nil {
		t.Fatalf("first Next: ok=%v err=%v", ok, err)
	}
	if err := iter.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFromSeq_EarlyStopReleasesPull(t *testing.T) {
	seq := func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}
	got, err := Collect(context.Background(), FromSeq(seq).Limit(3))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{0, 1, 2}) {
		t.Errorf("got %v", got)
	}
}

// stallingIter yields its items, then blocks in Next until release is closed.
// It ignores ctx, like a reader waiting on a terminal.
type stallingIter struct {
	items   []int
	release chan struct{}
	closed  chan struct{}
}

func (it *stallingIter) Next(context.Context) (int, bool, error) {
	if len(it.items) > 0 {
		v := it.items[0]
		it.items = it.items[1:]
		return v, true, nil
	}
	<-it.release
	return 0, false, nil
}

func (it *stallingIter) Close() error {
	close(it.closed)
	return nil
}

func TestParallel_CloseDoesNotWaitForStalledSource(t *testing.T) {
	src := &stallingIter{items: []int{1, 2}, release: make(chan struct{}), closed: make(chan struct{})}
	p := Parallel(From[int](src), 1, func(_ context.Context, n int) (int, error) {
		return n, nil
	}).Limit(1)

	type outcome struct {
		got []int
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		got, err := Collect(context.Background(), p)
		finished <- outcome{got, err}
	}()

	select {
	case o := <-finished:
		if o.err != nil || !intSliceEqual(o.got, []int{1}) {
			t.Errorf("got %v, %v; want [1]", o.got, o.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Collect blocked on a stalled upstream")
	}

	// The reading goroutine closes the source once Next returns.
	close(src.release)
	select {
	case <-src.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("source was never closed")
	}
}

func TestParallel_UpstreamErrorAfterLimitIsNotSeen(t *testing.T) {
	boom := errors.New("bad token")
	square := func(_ context.Context, n int) (int, error) { return n * n, nil }
	for i := range 200 {
		src := Concat(Of(1, 2), Generate(func(context.Context) (int, error) { return 0, boom }).Limit(1))
		got, err := Collect(context.Background(), Parallel(src, 2, square).Limit(2))
		if err != nil {
			t.Fatalf("run %d: unexpected error %v", i, err)
		}
		sort.Ints(got)
		if !intSliceEqual(got, []int{1, 4}) {
			t.Fatalf("run %d: got %v, want [1 4]", i, got)
		}
	}
}

func TestParallel_ValuesBeforeFailureAreDelivered(t *testing.T) {
	errWorker := errors.New("worker failed")
	fn := func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errWorker
		}
		return n, nil
	}
	for i := range 100 {
		got, err := Collect(context.Background(), Parallel(Of(1, 2, 3, 4), 1, fn).Limit(2))
		if err != nil {
			t.Fatalf("run %d: unexpected error %v", i, err)
		}
		if !intSliceEqual(got, []int{1, 2}) {
			t.Fatalf("run %d: got %v, want [1 2]", i, got)
		}
	}

	// With more workers 4 may overtake 2, but 1 and 2 always precede the error.
	for i := range 100 {
		got, err := Collect(context.Background(), Parallel(Of(1, 2, 3, 4), 4, fn).Limit(2))
		if err != nil {
			t.Fatalf("run %d: unexpected error %v", i, err)
		}
		if len(got) != 2 || slices.Contains(got, 3) {
			t.Fatalf("run %d: got %v", i, got)
		}
	}
}

func TestParallel_UpstreamErrorComesLast(t *testing.T) {
	boom := errors.New("bad token")
	src := Concat(Of(1, 2, 3), Generate(func(context.Context) (int, error) { return 0, boom }).Limit(1))
	iter := Parallel(src, 3, func(_ context.Context, n int) (int, error) { return n, nil }).Iter(context.Background())
	defer iter.Close()

	var got []int
	for {
		v, ok, err := iter.Next(context.Background())
		if err != nil {
			if !errors.Is(err, boom) {
				t.Fatalf("expected upstream error, got %v", err)
			}
			break
		}
		if !ok {
			t.Fatal("sequence ended without the upstream error")
		}
		got = append(got, v)
	}
	sort.Ints(got)
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v before the error, want [1 2 3]", got)
	}
}
