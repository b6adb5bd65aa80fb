package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/diagnosis/puffit/internal/http/response"
	"github.com/diagnosis/puffit/internal/ratelimit"
	"github.com/diagnosis/puffit/pkg/logger"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Prefix   string                         // Namespaces keys per route group
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
	SkipFunc func(r *http.Request) bool     // Function to skip rate limiting
	Now      func() time.Time
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	limiter ratelimit.Limiter
	config  RateLimitConfig
}

func NewRateLimiter(limiter ratelimit.Limiter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &RateLimiter{limiter: limiter, config: config}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range rl.config.KeyFunc(r) {
				if ok, retryAfter := rl.check(r.Context(), rl.config.Prefix+key); !ok {
					if retryAfter > 0 {
						w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
					}
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check fails open when the backing store errors.
func (rl *RateLimiter) check(ctx context.Context, key string) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	allowed, retryAfter, err := rl.limiter.Allow(ctx, key, rl.config.Now())
	if err != nil {
		logger.WarnContext(ctx, "Rate limiter unavailable", "error", err)
		return true, 0
	}
	return allowed, retryAfter
}

// ClientIPKeyFunc limits by the caller's address.
func ClientIPKeyFunc(r *http.Request) []string {
	if ip := getClientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

// getClientIP uses the connection address only. Forwarded headers are
// honoured solely when chi's RealIP runs in front, which cmd/api enables
// for a trusted proxy.
func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
