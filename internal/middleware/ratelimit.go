package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"notehub-backend/internal/cache"
)

const (
	loginLimit  = 5
	loginWindow = time.Minute
)

// RateLimitLogin throttles credential attempts per client IP. A nil cache
// client disables the limit; limiter failures fail open so a redis outage
// does not take logins down with it.
func RateLimitLogin(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cacheClient == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := "nh:rl:login:" + clientIP(r)
			count, err := cacheClient.IncrWithTTL(key, loginWindow)
			if err == nil && count > loginLimit {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
