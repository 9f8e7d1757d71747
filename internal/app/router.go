package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/castellan/castellan/internal/auth"
	"github.com/castellan/castellan/internal/observability"
	"github.com/castellan/castellan/internal/rbac"
	"github.com/castellan/castellan/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	AuthMiddleware     auth.Middleware
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Castellan defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		// Tighter limit on credential endpoints than the global one.
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	adminOnly := params.AuthMiddleware.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)

	r.Route("/users", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)
		r.Use(adminOnly)
		params.UsersHandler.MountRoutes(r)
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Authenticate)
		r.Use(adminOnly)
		params.PermissionsHandler.MountRoutes(r)
	})

	return r
}
