package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// IdentifierFunc picks the key a request is throttled under. Returning false
// exempts the request.
type IdentifierFunc func(*gin.Context) (string, bool)

// ByClientIP keys requests by the resolved client address.
func ByClientIP(c *gin.Context) (string, bool) {
	ip := ClientIP(c)
	return ip, ip != ""
}

// Throttle admits requests through limiter under the key chosen by identify.
// A nil limiter disables the middleware. Limiter errors are logged and the
// request goes through.
func Throttle(scope string, limiter port.RateLimiter, identify IdentifierFunc, log *zap.Logger) gin.HandlerFunc {
	if limiter == nil || identify == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		key, ok := identify(c)
		if !ok {
			c.Next()
			return
		}

		decision, err := limiter.Admit(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable, admitting request", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		SetRateLimitHeaders(c, decision)
		if !decision.Allowed {
			AbortRateLimited(c, decision.RetryAfter)
			return
		}
		c.Next()
	}
}

// SetRateLimitHeaders writes the X-RateLimit-* headers for decision, plus
// Retry-After when it was a rejection.
func SetRateLimitHeaders(c *gin.Context, decision port.RateLimitDecision) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))

	reset := decision.ResetAt
	if reset.IsZero() {
		reset = time.Now().Add(decision.RetryAfter)
	}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

	if !decision.Allowed {
		h.Set("Retry-After", strconv.Itoa(ceilSeconds(decision.RetryAfter)))
	}
}

// AbortRateLimited ends the request with 429 and the RATE_LIMIT_EXCEEDED body.
func AbortRateLimited(c *gin.Context, retryAfter time.Duration) {
	seconds := ceilSeconds(retryAfter)
	if c.Writer.Header().Get("Retry-After") == "" {
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	message := "Too many requests. Please try again later."
	if seconds > 0 {
		message = fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds)
	}
	AbortWithError(c, http.StatusTooManyRequests, CodeRateLimitExceeded, message, map[string]any{
		"retry_after": seconds,
	})
}

// ceilSeconds rounds d up to whole seconds, never below zero.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
