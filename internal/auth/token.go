package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const tokenEntropyBytes = 32

// FlowToken is a single-use, time-bounded secret that authorizes one
// registration confirmation or password reset.
type FlowToken struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer usable at the given
// instant. A token evaluated exactly at its expiry counts as expired.
func (t FlowToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenFactory mints flow tokens with a fixed TTL.
type TokenFactory struct {
	ttl time.Duration
	now func() time.Time
}

// NewTokenFactory constructs a factory issuing tokens valid for ttl.
func NewTokenFactory(ttl time.Duration) *TokenFactory {
	return &TokenFactory{ttl: ttl, now: time.Now}
}

// Generate mints a fresh token from the system CSPRNG.
// Timestamps are truncated to whole seconds so the serialized form
// round-trips exactly.
func (f *TokenFactory) Generate() (FlowToken, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return FlowToken{}, fmt.Errorf("auth: generate token: %w", err)
	}
	issued := f.now().UTC().Truncate(time.Second)
	return FlowToken{
		Value:     hex.EncodeToString(buf),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(f.ttl),
	}, nil
}
