package lightning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

// TestRaceCallCompletes asserts that a call finishing within the allowed time
// returns its own result.
func TestRaceCallCompletes(t *testing.T) {
	defer leaktest.Check(t)()

	res, err := RaceCall(
		context.Background(),
		func(ctx context.Context) (int, error) {
			return 21, nil
		},
		time.Minute,
	)
	require.NoError(t, err)
	require.Equal(t, 21, res)
}

// TestRaceCallError asserts that errors of the call are propagated as is.
func TestRaceCallError(t *testing.T) {
	defer leaktest.Check(t)()

	errCall := errors.New("rpc failure")
	_, err := RaceCall(
		context.Background(),
		func(ctx context.Context) (int, error) {
			return 0, errCall
		},
		time.Minute,
	)
	require.ErrorIs(t, err, errCall)
}

// TestRaceCallTimeout asserts that a call exceeding the timeout yields
// ErrCallTimeout and that the abandoned call does not leak its goroutine.
func TestRaceCallTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	_, err := RaceCall(
		context.Background(),
		func(ctx context.Context) (int, error) {
			// Block until the wrapper cancels us.
			<-ctx.Done()
			return 0, ctx.Err()
		},
		25*time.Millisecond,
	)
	require.ErrorIs(t, err, ErrCallTimeout)
}

// TestRaceCallContextCancel asserts that cancellation of the outer context
// takes precedence over the timeout.
func TestRaceCallContextCancel(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RaceCall(
		ctx,
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		time.Minute,
	)
	require.ErrorIs(t, err, context.Canceled)
}
