package http

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"meshwatch/internal/domain"

	"github.com/gin-gonic/gin"
)

// enforceRateLimit checks the per-client window for routeID and writes the
// refusal itself when the request should not proceed. A broken limiter fails
// open unless RATE_LIMIT_FAIL_CLOSED is set.
func (s *Server) enforceRateLimit(c *gin.Context, routeID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := "client:" + c.ClientIP() + ":route:" + routeID
	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		log.Printf("rate limiter unavailable for %s: %v", routeID, err)
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, d domain.RateLimitDecision) {
	c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			retry := time.Until(d.ResetAt)
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
		}
	}
}
