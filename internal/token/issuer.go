// Package token issues opaque email verification tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	// ByteLength gives 256 bits of entropy; the hex form is 64 characters.
	ByteLength = 32
	DefaultTTL = 24 * time.Hour
)

type Issuer struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

func NewIssuer(ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{ttl: ttl, now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns a fresh token and its expiry (now + ttl).
func (i *Issuer) Issue() (string, time.Time, error) {
	b := make([]byte, ByteLength)
	if _, err := io.ReadFull(i.random, b); err != nil {
		return "", time.Time{}, fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), i.now().Add(i.ttl), nil
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
