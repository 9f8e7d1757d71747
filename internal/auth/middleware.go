package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/castellan/castellan/internal/platform/httpx"
)

type claimsCtxKey struct{}

// ContextWithClaims stores verified session claims on the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFromContext returns the verified session claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims
}

// Middleware enforces bearer-token authentication on protected routes.
type Middleware struct {
	Issuer *Issuer
	Logger *slog.Logger
}

// Authenticate verifies the Authorization header and stores the session
// claims on the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.RespondError(w, fmt.Errorf("%w: missing bearer token", httpx.ErrUnauthorized))
			return
		}
		claims, err := m.Issuer.Parse(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("session token rejected", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole gates a route on the primary role carried by the session
// claims. Authenticate must run earlier in the chain.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.RespondError(w, fmt.Errorf("%w: missing session", httpx.ErrUnauthorized))
				return
			}
			if _, ok := allowed[Role(claims.Role)]; !ok {
				httpx.RespondError(w, fmt.Errorf("%w: insufficient role", httpx.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
