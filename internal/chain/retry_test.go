package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type revertError struct{}

func (revertError) Error() string          { return "execution reverted" }
func (revertError) ErrorData() interface{} { return "0x" }

func testClient(maxRetries int, backoff time.Duration) *Client {
	return &Client{logger: zap.NewNop(), maxRetries: maxRetries, retryBackoff: backoff}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := testClient(3, time.Millisecond).retry(context.Background(), "eth_call", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := testClient(2, time.Millisecond).retry(context.Background(), "eth_call", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestRetrySkipsReverts(t *testing.T) {
	calls := 0
	err := testClient(5, time.Millisecond).retry(context.Background(), "eth_call", func(context.Context) error {
		calls++
		return revertError{}
	})
	require.ErrorAs(t, err, &revertError{})
	require.Equal(t, 1, calls)

	calls = 0
	err = testClient(5, time.Millisecond).retry(context.Background(), "eth_call", func(context.Context) error {
		calls++
		return errors.New("execution reverted: not a pool")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := testClient(5, time.Hour).retry(ctx, "eth_call", func(context.Context) error {
		calls++
		cancel()
		return errors.New("temporary")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRetryWaitsOnLimiter(t *testing.T) {
	require.Nil(t, newLimiter(0))

	c := &Client{logger: zap.NewNop(), limiter: newLimiter(1)}
	calls := 0
	require.NoError(t, c.retry(context.Background(), "first", func(context.Context) error {
		calls++
		return nil
	}))

	// the burst is spent, so a cancelled context fails before the call
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.retry(ctx, "second", func(context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
