package config

import "time"

// Guard mode values.
const (
	GuardModeMemory = "memory"
	GuardModeRedis  = "redis"
)

// GuardConfig configures the mutation guard that drops duplicate submits.
// Single-replica deployments use the in-memory guard; multi-replica ones
// share pending marks through redis.
type GuardConfig struct {
	// Mode selects the guard backend: "memory" or "redis".
	Mode string `env:"MODE" envDefault:"memory"`

	// RedisAddr is the redis address when Mode is "redis".
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// RedisPassword is the redis password, if any.
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`

	// PendingTTL bounds how long a pending mark survives a crashed request.
	PendingTTL time.Duration `env:"PENDING_TTL" envDefault:"30s"`
}

// Sanitize applies guardrails to guard configuration values.
func (g *GuardConfig) Sanitize() {
	if g.Mode != GuardModeRedis {
		g.Mode = GuardModeMemory
	}
	if g.PendingTTL <= 0 {
		g.PendingTTL = 30 * time.Second
	}
}
