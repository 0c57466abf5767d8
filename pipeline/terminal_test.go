package pipeline

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/streamkit/errors"
)

func sum(acc, n int) (int, error) { return acc + n, nil }

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		init int
		want int
	}{
		{"sum with zero seed", []int{1, 2, 3, 4}, 0, 10},
		{"empty returns seed", nil, 42, 42},
		{"nonzero seed", []int{1, 2}, 10, 13},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Reduce(context.Background(), FromSlice(tc.in), tc.init, sum)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReduce_ChangesType(t *testing.T) {
	got, err := Reduce(context.Background(), Of("a", "bb", "ccc"), 0, func(acc int, s string) (int, error) {
		return acc + len(s), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("got %d, want 6", got)
	}
}

func TestReduceFirst(t *testing.T) {
	got, err := ReduceFirst(context.Background(), Of(1, 2, 3, 4), sum)
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Errorf("got %d, want 10", got)
	}

	single, err := ReduceFirst(context.Background(), Of(7), func(int, int) (int, error) {
		t.Fatal("fn must not be called for a single element")
		return 0, nil
	})
	if err != nil || single != 7 {
		t.Errorf("single element: got %d, %v", single, err)
	}
}

func TestReduceFirst_Empty(t *testing.T) {
	_, err := ReduceFirst(context.Background(), Empty[int](), sum)
	if !stderrors.Is(err, ErrEmptySequence) {
		t.Fatalf("expected EMPTY_SEQUENCE, got %v", err)
	}
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Op != "ReduceFirst" {
		t.Errorf("expected op ReduceFirst, got %v", err)
	}
}

func TestReduce_CallbackError(t *testing.T) {
	boom := stderrors.New("boom")
	_, err := Reduce(context.Background(), Of(1, 2, 3), 0, func(acc, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return acc + n, nil
	})
	if err != boom {
		t.Errorf("expected callback error unchanged, got %v", err)
	}
}

func TestToSet(t *testing.T) {
	got, err := ToSet(context.Background(), Of("a", "b", "a", "c"))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToSet mismatch (-want +got):\n%s", diff)
	}
}

func TestForEach(t *testing.T) {
	var seen []int
	err := ForEach(context.Background(), Of(1, 2, 3), func(_ context.Context, n int) error {
		seen = append(seen, n)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, seen); diff != "" {
		t.Errorf("ForEach order mismatch (-want +got):\n%s", diff)
	}
}

func TestDrain_Run(t *testing.T) {
	var collected []int
	r := Drain(Of(1, 2, 3), func(_ context.Context, n int) error {
		collected = append(collected, n)
		return nil
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, collected); diff != "" {
		t.Errorf("Drain mismatch (-want +got):\n%s", diff)
	}
}

func TestLen_And_First(t *testing.T) {
	n, err := Len(context.Background(), Of(4, 5, 6))
	if err != nil || n != 3 {
		t.Errorf("Len = %d, %v", n, err)
	}

	first, err := First(context.Background(), Count(100))
	if err != nil || first != 100 {
		t.Errorf("First on unbounded = %d, %v", first, err)
	}

	if _, err := First(context.Background(), Empty[string]()); !stderrors.Is(err, ErrEmptySequence) {
		t.Errorf("First on empty: expected EMPTY_SEQUENCE, got %v", err)
	}
}

func TestTerminals_RejectUnbounded(t *testing.T) {
	ctx := context.Background()
	naturals := Count(0)
	runs := map[string]func() error{
		"Collect":     func() error { _, err := Collect(ctx, naturals); return err },
		"ToSet":       func() error { _, err := ToSet(ctx, naturals); return err },
		"Reduce":      func() error { _, err := Reduce(ctx, naturals, 0, sum); return err },
		"ReduceFirst": func() error { _, err := ReduceFirst(ctx, naturals, sum); return err },
		"ForEach":     func() error { return ForEach(ctx, naturals, func(context.Context, int) error { return nil }) },
		"Len":         func() error { _, err := Len(ctx, naturals); return err },
		"Drain":       func() error { return Drain(naturals, func(context.Context, int) error { return nil }).Run(ctx) },
		"SortBy":      func() error { _, err := First(ctx, SortBy(naturals, func(n int) int { return -n }, false)); return err },
		"Mapped":      func() error { _, err := Collect(ctx, naturals.Map(func(_ context.Context, n int) (int, error) { return n, nil })); return err },
		"Concat":      func() error { _, err := Collect(ctx, Concat(Of(1), naturals)); return err },
	}
	for name, run := range runs {
		t.Run(name, func(t *testing.T) {
			err := run()
			if !stderrors.Is(err, ErrUnboundedMaterialization) {
				t.Errorf("expected UNBOUNDED_MATERIALIZATION, got %v", err)
			}
		})
	}
}

func TestWithMaxElements(t *testing.T) {
	ctx := context.Background()
	_, err := Collect(ctx, Range(0, 100), WithMaxElements(10))
	if !stderrors.Is(err, ErrUnboundedMaterialization) {
		t.Fatalf("expected UNBOUNDED_MATERIALIZATION, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["max_elements"] != 10 {
		t.Errorf("expected max_elements detail, got %v", appErr.Details)
	}

	got, err := Collect(ctx, Range(0, 10), WithMaxElements(10))
	if err != nil || len(got) != 10 {
		t.Errorf("exactly max elements should pass: len=%d err=%v", len(got), err)
	}
}

func TestTerminal_ClosesIteratorOnError(t *testing.T) {
	src := &closeTracker[int]{sliceIter: sliceIter[int]{items: []int{1, 2, 3}}}
	p := FromFunc(func(context.Context) Iterator[int] { return src })
	_ = ForEach(context.Background(), p, func(_ context.Context, n int) error {
		if n == 2 {
			return stderrors.New("stop")
		}
		return nil
	})
	if !src.closed {
		t.Error("terminal must close the iterator chain on error")
	}
}

type closeTracker[T any] struct {
	sliceIter[T]
	closed bool
}

func (c *closeTracker[T]) Next(ctx context.Context) (T, bool, error) {
	return c.sliceIter.Next(ctx)
}

func (c *closeTracker[T]) Close() error {
	c.closed = true
	return nil
}

func TestMaxElements_CountsBeforeChunk(t *testing.T) {
	ctx := context.Background()
	_, err := Collect(ctx, Chunk(Range(0, 7).MaxElements(6), 3))
	if !stderrors.Is(err, ErrUnboundedMaterialization) {
		t.Fatalf("expected UNBOUNDED_MATERIALIZATION, got %v", err)
	}
	if appErr, _ := errors.AsAppError(err); appErr.Op != "MaxElements" || appErr.Details["max_elements"] != 6 {
		t.Errorf("unexpected error %v", err)
	}

	got, err := Collect(ctx, Chunk(Range(0, 6).MaxElements(6), 3))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]int{{0, 1, 2}, {3, 4, 5}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if Range(0, 3).MaxElements(0).IsUnbounded() {
		t.Error("a disabled cap must not change the pipeline")
	}
}
