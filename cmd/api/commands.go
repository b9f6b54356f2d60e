package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dawailo/internal/adapters/auth/jwt"
	"dawailo/internal/adapters/auth/odin"
	"dawailo/internal/adapters/storage/sqlstore"
	"dawailo/internal/domain/users"
	"dawailo/internal/platform/config"
	"dawailo/internal/platform/logger"
	"dawailo/internal/platform/metrics"
	"dawailo/internal/ports/auth"
	"dawailo/internal/router"
)

const shutdownTimeout = 10 * time.Second

var errNeedsDatabase = errors.New("this command needs DB_DRIVER=postgres|sqlite and DB_DSN")

type appContext struct {
	Config config.Config
	Log    logger.Logger
}

// openStore devuelve nil, nil con el driver in-memory.
func (a *appContext) openStore(ctx context.Context, migrate bool) (*sqlstore.Store, error) {
	if a.Config.DBDriver == config.DriverMemory {
		return nil, nil
	}

	store, err := sqlstore.Open(a.Config.DBDriver, a.Config.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Config.DBDriver, err)
	}
	if !migrate {
		return store, nil
	}

	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	version, _ := store.CurrentVersion(ctx)
	a.Log.Info("database ready", map[string]any{
		"driver":  a.Config.DBDriver,
		"applied": applied,
		"version": version,
	})
	return store, nil
}

type ServeCmd struct {
	SkipMigrate bool `help:"Do not apply pending migrations on startup."`
}

func (c *ServeCmd) Run(app *appContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.Config

	store, err := app.openStore(ctx, !c.SkipMigrate)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	verifier, issuer, err := authFor(cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	handler := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		TokenIssuer:  issuer,
		Store:        store,
		Logger:       app.Log,
		Metrics:      m,
		Location:     cfg.Location,
		SeedDemo:     cfg.SeedDemo,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info("starting server", map[string]any{
			"addr":      srv.Addr,
			"db_driver": cfg.DBDriver,
			"auth_mode": cfg.AuthMode,
			"tz":        cfg.TZ,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	app.Log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *appContext) error {
	if app.Config.DBDriver == config.DriverMemory {
		return errNeedsDatabase
	}
	store, err := app.openStore(context.Background(), true)
	if err != nil {
		return err
	}
	return store.Close()
}

type SeedCmd struct{}

func (c *SeedCmd) Run(app *appContext) error {
	if app.Config.DBDriver == config.DriverMemory {
		return errNeedsDatabase
	}
	ctx := context.Background()
	store, err := app.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()

	created, err := users.NewService(sqlstore.NewUsersRepo(store), nil, app.Log).SeedDemo(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	app.Log.Info("seed finished", map[string]any{"created": created})
	return nil
}

// authFor arma verifier/issuer según AUTH_MODE. En dev ambos son nil y
// AuthContext acepta los headers X-Debug-*.
func authFor(cfg config.Config) (auth.AuthVerifier, auth.TokenIssuer, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		tokens, err := jwt.New(jwt.Config{Secret: cfg.JWTSecret, TTL: cfg.JWTTTL})
		if err != nil {
			return nil, nil, err
		}
		return tokens, tokens, nil
	case config.AuthModeOdin:
		client, err := odin.NewClient(odin.Config{BaseURL: cfg.OdinBaseURL, APIKey: cfg.OdinAPIKey})
		if err != nil {
			return nil, nil, err
		}
		return odin.NewVerifier(client), nil, nil
	default:
		return nil, nil, nil
	}
}
