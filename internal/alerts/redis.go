package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events on "alerts.<SYMBOL>" and keeps the last
// event per symbol under "alert:<SYMBOL>:last".
type RedisNotifier struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisNotifier wraps a go-redis client.
func NewRedisNotifier(rdb redis.Cmdable, ttl time.Duration) *RedisNotifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisNotifier{rdb: rdb, ttl: ttl}
}

func (r *RedisNotifier) Name() string {
	return "redis"
}

// Notify implements Notifier.
func (r *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, LastAlertKey(ev.Symbol), payload, r.ttl)
	pipe.Publish(ctx, Channel(ev.Symbol), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Symbol, err)
	}
	return nil
}

// Channel is the pub/sub channel for symbol.
func Channel(symbol string) string {
	return fmt.Sprintf("alerts.%s", symbol)
}

// LastAlertKey holds the most recent event for symbol.
func LastAlertKey(symbol string) string {
	return fmt.Sprintf("alert:%s:last", symbol)
}
