package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 10 * time.Second
)

// retry runs fn until it succeeds, fails permanently, or the retry budget
// is spent. Every attempt takes a limiter token first.
func (c *Client) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := c.retryBackoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return err
		}
		c.logger.Debug("rpc call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryBackoff)
	}
}

// retryable is false for reverts and cancellation; repeating those gives
// the same answer.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return false
	}
	return !strings.Contains(err.Error(), "execution reverted")
}

func newLimiter(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
}
