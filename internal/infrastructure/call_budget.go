package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const budgetWindow = time.Hour

// HourlyCallBudget is an in-process domain.CallBudget. It counts calls in a
// window that opens with the first call and, once the budget is spent, sleeps
// until the window resets instead of failing.
type HourlyCallBudget struct {
	limit   int
	mu      sync.Mutex
	count   int
	resetAt time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewHourlyCallBudget(limit int, logger *logger.Logger, metrics *metrics.Metrics) *HourlyCallBudget {
	if limit < 1 {
		limit = 1
	}
	return &HourlyCallBudget{
		limit:   limit,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func (b *HourlyCallBudget) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		now := b.now()
		if b.resetAt.IsZero() || !now.Before(b.resetAt) {
			b.count = 0
			b.resetAt = now.Add(budgetWindow)
		}
		if b.count < b.limit {
			b.count++
			b.mu.Unlock()
			return nil
		}
		wait := b.resetAt.Sub(now)
		b.mu.Unlock()

		b.metrics.RecordCallBudgetWait(wait)
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"limit": b.limit,
			"wait":  wait.String(),
		}).Warn("Hourly API call budget exhausted, waiting for reset")

		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Used reports calls counted in the current window.
func (b *HourlyCallBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// RedisCallBudget shares one hourly budget across processes with an INCR
// counter that expires with the window.
type RedisCallBudget struct {
	client  *redis.Client
	key     string
	limit   int64
	logger  *logger.Logger
	metrics *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRedisCallBudget(client *redis.Client, key string, limit int, logger *logger.Logger, metrics *metrics.Metrics) *RedisCallBudget {
	if limit < 1 {
		limit = 1
	}
	return &RedisCallBudget{
		client:  client,
		key:     key,
		limit:   int64(limit),
		logger:  logger,
		metrics: metrics,
		sleep:   sleepContext,
	}
}

func (b *RedisCallBudget) Acquire(ctx context.Context) error {
	for {
		count, err := b.client.Incr(ctx, b.key).Result()
		if err != nil {
			return fmt.Errorf("call budget: %w", err)
		}
		if count == 1 {
			if err := b.client.Expire(ctx, b.key, budgetWindow).Err(); err != nil {
				return fmt.Errorf("call budget: %w", err)
			}
		}
		if count <= b.limit {
			return nil
		}

		ttl, err := b.client.TTL(ctx, b.key).Result()
		if err != nil {
			return fmt.Errorf("call budget: %w", err)
		}
		if ttl <= 0 {
			// Counter lost its expiry; restart the window.
			if err := b.client.Expire(ctx, b.key, budgetWindow).Err(); err != nil {
				return fmt.Errorf("call budget: %w", err)
			}
			ttl = budgetWindow
		}

		b.metrics.RecordCallBudgetWait(ttl)
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"key":   b.key,
			"limit": b.limit,
			"wait":  ttl.String(),
		}).Warn("Shared API call budget exhausted, waiting for reset")

		if err := b.sleep(ctx, ttl); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
