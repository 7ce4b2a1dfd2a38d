package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshwatch/internal/domain"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter keys so a shared Redis instance can carry
// other meshwatch state without collisions.
const keyPrefix = "meshwatch:rl:"

// Counter and expiry must move together or concurrent streams over-admit,
// hence the script.
var allowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

type redisLimiter struct {
	rdb   *redis.Client
	clock func() time.Time
}

// NewRedisLimiter shares rate-limit windows across meshwatch replicas.
func NewRedisLimiter(addr, password string, db int, clock func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if clock == nil {
		clock = time.Now
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{rdb: rdb, clock: clock}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	expiry := window.Milliseconds()
	if expiry <= 0 {
		expiry = time.Second.Milliseconds()
	}

	raw, err := allowScript.Run(ctx, r.rdb, []string{keyPrefix + key}, expiry).Result()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	hits, ttl, err := decodeScriptReply(raw)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	decision := domain.RateLimitDecision{
		Allowed: hits <= int64(limit),
		Limit:   limit,
		ResetAt: r.clock(),
	}
	if ttl > 0 {
		decision.ResetAt = decision.ResetAt.Add(time.Duration(ttl) * time.Millisecond)
	}
	if left := int64(limit) - hits; left > 0 {
		decision.Remaining = int(left)
	}
	return decision, nil
}

func decodeScriptReply(raw any) (hits, ttl int64, err error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return 0, 0, errors.New("unexpected redis rate limit reply")
	}
	hits, ok = values[0].(int64)
	if !ok {
		return 0, 0, errors.New("non-integer redis counter reply")
	}
	ttl, _ = values[1].(int64)
	return hits, ttl, nil
}
