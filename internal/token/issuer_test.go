package token

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func TestIssueFormatAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	iss := NewIssuer(0, WithClock(func() time.Time { return now }))

	tok, exp, err := iss.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tok) != 2*ByteLength {
		t.Fatalf("expected %d hex chars, got %d", 2*ByteLength, len(tok))
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}
	if !exp.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expected expiry now+24h, got %s", exp)
	}
}

func TestIssueIsUnique(t *testing.T) {
	iss := NewIssuer(time.Hour)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, _, err := iss.Issue()
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d issues", i)
		}
		seen[tok] = struct{}{}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestIssuePropagatesRandomFailure(t *testing.T) {
	iss := NewIssuer(time.Hour, WithRandom(failingReader{}))
	if _, _, err := iss.Issue(); err == nil {
		t.Fatal("expected error from failing random source")
	}
}
