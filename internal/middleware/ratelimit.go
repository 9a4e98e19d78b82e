// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "ratelimit:"

// RateLimiter is a fixed-window limiter kept in Valkey, so every API
// process shares the same counters.
type RateLimiter struct {
	client *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit requests per window per client IP. scope
// separates counters of different endpoints.
func NewRateLimiter(client *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, scope: scope, limit: int64(limit), window: window}
}

// Middleware rejects requests over the limit with 429. When Valkey is
// unreachable requests pass through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateKeyPrefix + rl.scope + ":" + clientIP(r)

		n, err := rl.client.Incr(r.Context(), key).Result()
		if err == nil && n == 1 {
			err = rl.client.PExpire(r.Context(), key, rl.window).Err()
		}
		if err != nil {
			slog.Warn("rate limiter unavailable", "scope", rl.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if n > rl.limit {
			retry := rl.window
			if ttl, err := rl.client.PTTL(r.Context(), key).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client's IP address, checking X-Forwarded-For
// and X-Real-IP headers for proxied requests.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Leftmost entry is the original client.
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
