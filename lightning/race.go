package lightning

import (
	"context"
	"time"
)

// RaceCall runs the given call and bounds its duration to the passed timeout.
// When the timeout elapses first, ErrCallTimeout is returned and the eventual
// result of the call, if any, is discarded. The context handed to the call is
// canceled once RaceCall returns, so well behaved calls do not leak.
func RaceCall[T any](ctx context.Context,
	call func(ctx context.Context) (T, error),
	timeout time.Duration) (T, error) {

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	// Buffered so that a late completion after the timeout does not block
	// the goroutine forever.
	resChan := make(chan result, 1)
	go func() {
		value, err := call(callCtx)
		resChan <- result{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resChan:
		return res.value, res.err

	case <-timer.C:
		var zero T
		return zero, ErrCallTimeout

	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
