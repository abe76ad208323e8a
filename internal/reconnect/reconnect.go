// Package reconnect holds the one retry policy Scout and Event Listener
// both need: fixed 2-second backoff, infinite retries, stop on context
// cancellation. It is a trivial loop, not a generic backoff library,
// because the spec calls for a fixed delay rather than exponential
// backoff with jitter — pulling in a dependency for `time.Sleep` in a loop
// would add nothing.
package reconnect

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Delay is the fixed reconnect delay used by every long-lived subscription
// in vega (spec.md §4.1/§4.2).
const Delay = 2 * time.Second

// Connect calls dial repeatedly until it succeeds or ctx is cancelled,
// sleeping Delay between attempts and logging each failure.
func Connect[T any](ctx context.Context, log *zap.Logger, what string, dial func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for {
		conn, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		log.Warn("reconnect: dial failed, retrying", zap.String("target", what), zap.Error(err))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(Delay):
		}
	}
}

// Run calls body repeatedly: on error, logs, sleeps Delay, and retries; on
// success, body is expected to block until the connection drops, at which
// point Run reconnects. Returns only when ctx is cancelled.
func Run(ctx context.Context, log *zap.Logger, what string, body func(ctx context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := body(ctx); err != nil {
			log.Warn("reconnect: connection ended, retrying", zap.String("target", what), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(Delay):
		}
	}
}
