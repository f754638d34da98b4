package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	forwardedForHeader = "X-Forwarded-For"
	realIPHeader       = "X-Real-IP"
)

// ClientIP resolves the caller address: the first X-Forwarded-For entry, then
// X-Real-IP, then the socket peer.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader(forwardedForHeader); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader(realIPHeader)); ip != "" {
		return ip
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(c.Request.RemoteAddr)
	}
	return host
}
