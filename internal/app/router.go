package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/observability"
	"github.com/vet360/vet360/internal/platform/httpx"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/roles"
	"github.com/vet360/vet360/internal/shared"
	"github.com/vet360/vet360/internal/users"
	"github.com/vet360/vet360/internal/validation"
	"github.com/vet360/vet360/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Contexts          *shared.ContextManager
	Sessions          *authz.Registry
	RBACMiddleware    rbac.Middleware
	AuthHandler       *auth.Handler
	MeHandler         *authz.Handler
	RolesHandler      *roles.Handler
	UsersHandler      *users.Handler
	ValidationHandler *validation.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// HealthCheck reports backing service health for /healthz. Optional.
	HealthCheck func(context.Context) error
}

// NewRouter constructs the chi.Router with VET360 defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	mwConfig := MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Contexts: params.Contexts,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.HealthCheck != nil {
			if err := params.HealthCheck(r.Context()); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ValidationHandler != nil {
		r.Route("/validate", params.ValidationHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(mwConfig))
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/me", func(r chi.Router) {
			params.MeHandler.MountAccessRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAuthenticated())
				params.MeHandler.MountRoutes(r)
			})
		})
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
	})

	return r
}
