// Package cache holds short-lived shared state: per-user action throttles.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ActionThrottle allows one action per user per window. Keys are scoped by
// the tenant of ctx, so the same user id in two tenants never collides.
type ActionThrottle interface {
	// Allow consumes the window for (user, action). When the action is still
	// cooling down it returns false and the remaining wait.
	Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) (bool, time.Duration, error)
}

func throttleKey(ctx context.Context, userID uuid.UUID, action string) string {
	scope := "none"
	if id, err := tenant.Current(ctx).CurrentTenantID(); err == nil {
		scope = id.String()
	}
	return fmt.Sprintf("throttle:%s:%s:%s", scope, userID, action)
}

// RedisThrottle shares windows across server instances.
type RedisThrottle struct {
	client redis.UniversalClient
}

// NewRedisThrottle creates a throttle backed by client.
func NewRedisThrottle(client redis.UniversalClient) *RedisThrottle {
	return &RedisThrottle{client: client}
}

func (t *RedisThrottle) Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) (bool, time.Duration, error) {
	key := throttleKey(ctx, userID, action)
	ok, err := t.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("throttle: %w", err)
	}
	if ok {
		return true, 0, nil
	}
	ttl, err := t.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("throttle: %w", err)
	}
	if ttl <= 0 {
		// key expired between the two calls
		return t.Allow(ctx, userID, action, window)
	}
	return false, ttl, nil
}

// MemoryThrottle keeps windows in process memory. It serves single-instance
// deployments and tests.
type MemoryThrottle struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMemoryThrottle creates an in-process throttle.
func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{last: make(map[string]time.Time), now: time.Now}
}

func (t *MemoryThrottle) Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) (bool, time.Duration, error) {
	key := throttleKey(ctx, userID, action)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return false, window - elapsed, nil
		}
	}
	t.last[key] = now
	return true, 0, nil
}

// Sweep drops windows older than maxAge.
func (t *MemoryThrottle) Sweep(maxAge time.Duration) {
	cutoff := t.now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.last {
		if v.Before(cutoff) {
			delete(t.last, k)
		}
	}
}
