package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/platform/httpx"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	user := &User{
		ID:     42,
		Email:  "user@example.com",
		Roles:  []Role{RoleAdmin, RoleUser},
		Status: StatusActive,
	}

	signed, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := issuer.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, string(RoleAdmin), claims.Role)
	require.NotNil(t, claims.ExpiresAt)

	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	signed, err := issuer.Issue(&User{ID: 1, Email: "a@x.com", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	other := NewIssuer("different-secret", time.Hour)
	_, err = other.Parse(signed)
	require.Error(t, err)
	require.True(t, errors.Is(err, httpx.ErrUnauthorized))
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	signed, err := issuer.Issue(&User{ID: 1, Email: "a@x.com", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	verifier := NewIssuer("test-secret", time.Hour)
	_, err = verifier.Parse(signed)
	require.Error(t, err)
	require.True(t, errors.Is(err, httpx.ErrUnauthorized))
}

func TestParseRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	_, err := issuer.Parse("not-a-token")
	require.Error(t, err)
	require.True(t, errors.Is(err, httpx.ErrUnauthorized))
}
