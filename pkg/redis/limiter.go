package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// WindowLimiter is a fixed-window counter: at most limit hits per key per window.
type WindowLimiter struct {
	rdb    redis.Cmdable
	clock  clockwork.Clock
	prefix string
	limit  int
	window time.Duration
}

// NewWindowLimiter creates a limiter storing counters under prefix.
func NewWindowLimiter(rdb redis.Cmdable, clock clockwork.Clock, prefix string, limit int, window time.Duration) *WindowLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WindowLimiter{rdb: rdb, clock: clock, prefix: prefix, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.clock.Now().UnixNano() / int64(l.window)
	rk := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rk)
		pipe.Expire(ctx, rk, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
