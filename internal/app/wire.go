package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/observability"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/roles"
	"github.com/vet360/vet360/internal/shared"
	"github.com/vet360/vet360/internal/users"
	"github.com/vet360/vet360/internal/validation"
	"github.com/vet360/vet360/jobs"
)

// Dependencies are the backing services the HTTP surface runs on.
type Dependencies struct {
	Redis       *redis.Client
	Credentials auth.Repository
	Profiles    authz.ProfileStore
	Directory   users.Lister
	Accounts    users.Accounts
	// Auditor and Inspector are optional.
	Auditor     authz.Auditor
	Inspector   *asynq.Inspector
	HealthCheck func(context.Context) error
}

// Server is the assembled HTTP surface and the session registry behind it.
type Server struct {
	Handler  http.Handler
	Registry *authz.Registry
	Events   *authz.ProfileEvents
	Metrics  *observability.Metrics
	Users    *users.Service
}

// Run sweeps idle sessions and applies profile changes announced by other
// instances until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Registry.Run(gctx) })
	g.Go(func() error { return s.Events.Listen(gctx) })
	return g.Wait()
}

// Build wires services, handlers and the router.
func Build(cfg *Config, logger *slog.Logger, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if deps.Redis == nil || deps.Credentials == nil || deps.Profiles == nil || deps.Directory == nil {
		return nil, errors.New("app: redis, credentials, profiles and directory are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics := observability.NewMetrics()
	validator := validation.New()
	contexts := shared.NewContextManager(deps.Redis, cfg.ContextCookie, cfg.ContextTTL, cfg.IsProduction())
	hub := auth.NewIdentityHub(deps.Redis, auth.NewService(deps.Credentials), cfg.IdentityTTL, logger)

	registry := authz.NewRegistry(authz.RegistryConfig{
		NewSession: func(contextID string) *authz.Session {
			return authz.NewSession(authz.Config{
				Provider: hub.ForContext(contextID),
				Store:    deps.Profiles,
				Logger:   logger.With(slog.String("context_id", contextID)),
				Recorder: metrics,
				Auditor:  deps.Auditor,
			})
		},
		InitTimeout: cfg.SessionInitTimeout,
		IdleTimeout: cfg.SessionIdleTimeout,
		Logger:      logger,
		Recorder:    metrics,
	})

	events := authz.NewProfileEvents(deps.Redis, func(uid string) {
		if n := registry.RefreshUID(uid); n > 0 {
			logger.Debug("refresh sessions", slog.String("uid", uid), slog.Int("sessions", n))
		}
	}, logger)

	rbacMiddleware := rbac.Middleware{Resolve: authz.GateFor, Logger: logger}
	usersService := users.NewService(users.ServiceConfig{
		Profiles: deps.Profiles,
		Lister:   deps.Directory,
		Accounts: deps.Accounts,
		Auditor:  deps.Auditor,
		Notifier: events,
		Logger:   logger,
	})

	handler := NewRouter(RouterParams{
		Logger:            logger,
		Config:            cfg,
		Contexts:          contexts,
		Sessions:          registry,
		RBACMiddleware:    rbacMiddleware,
		AuthHandler:       auth.NewHandler(logger, hub, validator, cfg.LoginSettleTimeout),
		MeHandler:         authz.NewHandler(logger, validator),
		RolesHandler:      roles.NewHandler(roles.NewService(), rbacMiddleware),
		UsersHandler:      users.NewHandler(logger, usersService, rbacMiddleware),
		ValidationHandler: validation.NewHandler(validator),
		JobHandler:        jobs.NewHandler(deps.Inspector, logger),
		Metrics:           metrics,
		HealthCheck:       deps.HealthCheck,
	})

	return &Server{Handler: handler, Registry: registry, Events: events, Metrics: metrics, Users: usersService}, nil
}
