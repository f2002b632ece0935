package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
)

// LoginLimiter caps login attempts per identifier within a fixed window.
// Key format: login:<identifier>
type LoginLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

// NewLoginLimiter creates a LoginLimiter wrapping the given Redis client.
// Non-positive values fall back to 5 attempts per 15 minutes.
func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &LoginLimiter{client: client, max: int64(maxAttempts), window: window}
}

// allowScript increments the counter and gives it a TTL when it has none, in
// one atomic step. A counter therefore always expires.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Allow counts one attempt for identifier and returns domain.ErrTooManyAttempts
// once the window's budget is spent. The window starts at the first attempt.
func (l *LoginLimiter) Allow(ctx context.Context, identifier string) error {
	n, err := allowScript.Run(ctx, l.client, []string{l.key(identifier)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("login limiter: %w", err)
	}
	if n > l.max {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the attempt counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	return l.client.Del(ctx, l.key(identifier)).Err()
}

func (l *LoginLimiter) key(identifier string) string {
	return "login:" + identifier
}

// Pinger adapts a Redis client to the readiness probe.
type Pinger struct {
	client *redis.Client
}

func NewPinger(client *redis.Client) *Pinger {
	return &Pinger{client: client}
}

func (p *Pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
