package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/faqdesk/faqdesk/internal/ports"
)

// RedisGuard is a redis-backed MutationGuard for multi-replica deployments:
// the pending mark must be shared so a double submit that lands on another
// replica is still dropped. Marks expire via TTL so an abandoned request
// cannot wedge its action.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.MutationGuard = (*RedisGuard)(nil)

// NewRedisGuard creates a redis-backed guard with the default pending TTL.
func NewRedisGuard(client redis.UniversalClient) *RedisGuard {
	return NewRedisGuardWithTTL(client, DefaultPendingTTL)
}

// NewRedisGuardWithTTL creates a redis-backed guard with a custom pending TTL.
func NewRedisGuardWithTTL(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &RedisGuard{
		client: client,
		prefix: "pending:",
		ttl:    ttl,
	}
}

func (g *RedisGuard) Begin(ctx context.Context, viewID, action string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+pendingKey(viewID, action), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) End(ctx context.Context, viewID, action string) error {
	if err := g.client.Del(ctx, g.prefix+pendingKey(viewID, action)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
