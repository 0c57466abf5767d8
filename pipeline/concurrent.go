package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// channelIter reads values from a channel. Used by concurrent operators.
type channelIter[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case r, open := <-it.ch:
		if !open {
			var zero T
			return zero, false, ctx.Err()
		}
		return r.val, r.ok, r.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

func (it *channelIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}

// Parallel applies fn to each value concurrently with up to n workers.
// Order is NOT preserved. Use Map for ordered processing.
//
// Unlike the other stages, Parallel reads ahead of demand: a few values may
// be pulled from upstream before the consumer asks for them. Every value
// pulled before an upstream error is delivered before that error, so a
// downstream Limit that is satisfied never sees it. After the first error
// from fn no new values are read; results already computed come first and
// the error last.
//
// Close cancels the workers and waits for them but not for an upstream Next
// that ignores ctx. The upstream iterator is closed by the goroutine reading
// it once that call returns.
func Parallel[I, O any](p *Pipeline[I], n int, fn func(context.Context, I) (O, error)) *Pipeline[O] {
	if n <= 0 {
		n = 1
	}
	return &Pipeline[O]{
		unbounded: p.unbounded,
		create: func(ctx context.Context) Iterator[O] {
			runCtx, cancel := context.WithCancel(ctx)
			source := p.create(runCtx)
			in := make(chan I, n)
			out := make(chan result[O], n)
			upstreamErr := make(chan error, 1)
			sourceClosed := make(chan error, 1)
			stop := make(chan struct{})
			var stopOnce sync.Once

			// Producer: the only goroutine that touches source.
			go func() {
				defer func() { sourceClosed <- source.Close() }()
				defer close(in)
				for {
					val, ok, err := source.Next(runCtx)
					if err != nil {
						upstreamErr <- err
						return
					}
					if !ok {
						return
					}
					select {
					case in <- val:
					case <-stop:
						return
					case <-runCtx.Done():
						return
					}
				}
			}()

			work := func(val I) error {
				o, err := fn(runCtx, val)
				if err != nil {
					stopOnce.Do(func() { close(stop) })
					return err
				}
				select {
				case out <- result[O]{val: o, ok: true}:
					return nil
				case <-runCtx.Done():
					return runCtx.Err()
				}
			}

			var g errgroup.Group
			for range n {
				g.Go(func() error {
					for {
						select {
						case val, open := <-in:
							if !open {
								return nil
							}
							if err := work(val); err != nil {
								return err
							}
						case <-stop:
							// Finish what was read before the failure.
							for {
								select {
								case val, open := <-in:
									if !open {
										return nil
									}
									if err := work(val); err != nil {
										return err
									}
								default:
									return nil
								}
							}
						case <-runCtx.Done():
							return nil
						}
					}
				})
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				defer close(out)
				err := g.Wait()
				if err == nil {
					// in is closed only after the producer has reported its error.
					select {
					case err = <-upstreamErr:
					default:
					}
				}
				if err != nil {
					select {
					case out <- result[O]{err: err}:
					case <-runCtx.Done():
					}
				}
			}()

			return &channelIter[O]{
				ch: out,
				closer: func() error {
					cancel()
					<-done
					select {
					case err := <-sourceClosed:
						return err
					default:
						return nil
					}
				},
			}
		},
	}
}
