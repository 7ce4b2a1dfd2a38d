package domain

import (
	"context"
	"time"
)

// RateLimitDecision reports one window check. Remaining and ResetAt feed the
// RateLimit-* response headers.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter throttles read and stream requests per client key. Allow
// consumes one slot and reports the window state for response headers.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
