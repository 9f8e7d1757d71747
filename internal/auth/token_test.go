package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/platform/httpx"
)

func TestGenerateToken(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	factory := NewTokenFactory(24 * time.Hour)
	factory.now = func() time.Time { return base }

	token, err := factory.Generate()
	require.NoError(t, err)
	require.Len(t, token.Value, tokenEntropyBytes*2)
	require.Equal(t, base, token.IssuedAt)
	require.Equal(t, base.Add(24*time.Hour), token.ExpiresAt)

	other, err := factory.Generate()
	require.NoError(t, err)
	require.NotEqual(t, token.Value, other.Value)
}

func TestTokenExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	factory := NewTokenFactory(24 * time.Hour)
	factory.now = func() time.Time { return base }

	token, err := factory.Generate()
	require.NoError(t, err)

	require.False(t, token.Expired(base))
	require.False(t, token.Expired(token.ExpiresAt.Add(-time.Second)))
	// Exactly at expiry counts as expired.
	require.True(t, token.Expired(token.ExpiresAt))
	require.True(t, token.Expired(token.ExpiresAt.Add(time.Second)))
}

func TestTokenCodecRoundTrip(t *testing.T) {
	factory := NewTokenFactory(24 * time.Hour)
	token, err := factory.Generate()
	require.NoError(t, err)

	encoded, err := EncodeToken(token)
	require.NoError(t, err)

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, token.Value, decoded.Value)
	require.True(t, token.IssuedAt.Equal(decoded.IssuedAt))
	require.True(t, token.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestDecodeTokenMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not json":      "garbage",
		"wrong shape":   `{"something":"else"}`,
		"missing value": `{"expires_at":"2026-08-28T12:00:00Z"}`,
		"unknown field": `{"value":"abc","expires_at":"2026-08-28T12:00:00Z","extra":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeToken(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, httpx.ErrValidation))
		})
	}
}
