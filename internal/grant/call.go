package grant

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/authcore/internal/oautherr"
)

// call runs fn under a deadline. fn gets the bounded context; if it ignores it,
// the guard still returns ErrTimeout on time and the result is dropped.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return zero, oautherr.WithCause(oautherr.ErrTimeout, r.err)
		}
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, oautherr.WithCause(oautherr.ErrTimeout, ctx.Err())
		}
		return zero, oautherr.WithCause(oautherr.ErrServerError, ctx.Err())
	}
}
