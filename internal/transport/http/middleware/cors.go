package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsAllowMethods  = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	corsAllowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "Accept", RequestIDHeader, TraceIDHeader}, ", ")
	corsExposeHeaders = strings.Join([]string{RequestIDHeader, TraceIDHeader, "Retry-After"}, ", ")
)

const corsPreflightMaxAge = "86400"

type corsPolicy struct {
	origins  map[string]struct{}
	wildcard bool
}

func newCORSPolicy(allowedOrigins []string) corsPolicy {
	policy := corsPolicy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			policy.wildcard = true
		default:
			policy.origins[strings.ToLower(origin)] = struct{}{}
		}
	}
	return policy
}

// allow reports whether origin may read responses and whether it may send
// credentials. Only explicitly listed origins get credentials.
func (p corsPolicy) allow(origin string) (allowed, credentials bool) {
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return true, true
	}
	return p.wildcard, false
}

// CORS answers preflight requests and decorates responses for the frontend
// origins in allowedOrigins. "*" admits any origin without credentials.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		allowed, credentials := policy.allow(origin)
		if allowed {
			if credentials {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			if allowed {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsPreflightMaxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
