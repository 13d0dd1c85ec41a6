package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ClientIP extracts the client IP from the request, considering proxies.
func ClientIP(ctx huma.Context) string {
	// Check X-Forwarded-For header (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	addr := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}

// clientKey identifies a client by IP and User-Agent.
func clientKey(ctx huma.Context) string {
	hash := sha256.Sum256([]byte(ClientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}
