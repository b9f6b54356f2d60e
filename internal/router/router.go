package router

import (
	"context"
	"net/http"
	"time"

	_ "dawailo/docs"
	"dawailo/internal/adapters/capabilities/roles"
	mem "dawailo/internal/adapters/storage/memory"
	"dawailo/internal/adapters/storage/sqlstore"
	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/prescriptions"
	"dawailo/internal/domain/schedule"
	"dawailo/internal/domain/users"
	"dawailo/internal/middleware"
	"dawailo/internal/platform/logger"
	"dawailo/internal/platform/metrics"
	"dawailo/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	TokenIssuer  auth.TokenIssuer  // nil: login sin token

	// Opcional: si viene, usa ese store (postgres/sqlite ya migrado). Si no, in-memory.
	Store *sqlstore.Store

	Logger   logger.Logger
	Metrics  *metrics.Metrics // nil deshabilita /metrics
	Location *time.Location   // define "hoy"; nil = UTC
	SeedDemo bool
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLogger(log, opts.Metrics))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", healthHandler(opts.Store))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		userRepo   users.Repository
		rxRepo     prescriptions.Repository
		adhereRepo adherence.Repository
	)
	if opts.Store != nil {
		userRepo = sqlstore.NewUsersRepo(opts.Store)
		rxRepo = sqlstore.NewPrescriptionsRepo(opts.Store)
		adhereRepo = sqlstore.NewAdherenceRepo(opts.Store)
	} else {
		userRepo = mem.NewUsersRepo()
		rxRepo = mem.NewPrescriptionsRepo()
		adhereRepo = mem.NewAdherenceRepo()
	}

	// Services por módulo
	usersSvc := users.NewService(userRepo, opts.TokenIssuer, log)
	rxSvc := prescriptions.NewService(rxRepo, usersSvc, log)
	adherenceSvc := adherence.NewService(adhereRepo, rxSvc, opts.Metrics, log)
	scheduleSvc := schedule.NewService(rxSvc, adherenceSvc, opts.Location, log)

	if opts.SeedDemo {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := usersSvc.SeedDemo(ctx); err != nil {
			log.Error("seed demo users failed", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	guard := middleware.NewGuard(roles.NewResolver(roles.DefaultTable()))

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc, guard)
	prescriptions.RegisterRoutes(r, rxSvc, guard, opts.Location)
	adherence.RegisterRoutes(r, adherenceSvc, guard)
	schedule.RegisterRoutes(r, scheduleSvc, guard)

	return r
}

func healthHandler(store *sqlstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
