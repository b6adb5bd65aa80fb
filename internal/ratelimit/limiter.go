// Package ratelimit implements fixed-window request limiting backed by Redis
// or process memory.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// defaultPrefix namespaces limiter keys when the caller passes none.
const defaultPrefix = "puffit:rl:"

// Limiter reports whether a request for key may proceed. When it may not,
// retryAfter tells the caller how long the current window still runs.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// hashKey keeps client addresses and emails out of the backing store.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
