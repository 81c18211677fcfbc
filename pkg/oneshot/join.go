package oneshot

import (
	"errors"
	"sync"
)

// Join completes once every input future has completed. It succeeds with the
// values in input order, or fails with the joined errors of every input that
// failed. Unlike a fail-fast "all", it never completes early.
func Join[T any](futs ...*Future[T]) *Future[[]T] {
	p := NewPromise[[]T]()
	if len(futs) == 0 {
		_ = p.Succeed([]T{})
		return p.Future()
	}

	var (
		mu        sync.Mutex
		remaining = len(futs)
		values    = make([]T, len(futs))
		errs      = make([]error, len(futs))
	)
	for i, f := range futs {
		f.OnComplete(func(r Result[T]) {
			mu.Lock()
			values[i] = r.Value
			errs[i] = r.Err
			remaining--
			last := remaining == 0
			mu.Unlock()
			if !last {
				return
			}
			if err := errors.Join(errs...); err != nil {
				_ = p.Complete(values, err)
				return
			}
			_ = p.Succeed(values)
		})
	}
	return p.Future()
}
