// Package lookup bounds calls to external collaborators with a deadline.
package lookup

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = 3 * time.Second

// Do runs fn under a context bounded by timeout. A deadline hit surfaces as a
// TIMEOUT error naming the collaborator; other errors pass through untouched.
func Do[T any](ctx context.Context, timeout time.Duration, what string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val: val, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && (errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			var zero T
			return zero, timeoutError(what, res.err)
		}
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, timeoutError(what, ctx.Err())
		}
		return zero, ctx.Err()
	}
}

// Within runs fn on the calling goroutine under a context bounded by timeout.
// Reads that share the caller's transaction use it, since fn must be finished
// with the transaction before Within returns.
func Within(ctx context.Context, timeout time.Duration, what string, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(bounded)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(bounded.Err(), context.DeadlineExceeded)) {
		return timeoutError(what, err)
	}
	return err
}

func timeoutError(what string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeTimeout, cause, what+" lookup timed out").
		WithDetails(map[string]any{"collaborator": what})
}
