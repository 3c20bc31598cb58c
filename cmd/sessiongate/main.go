package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"git.sr.ht/~jakintosh/sessiongate/internal/app"
	"git.sr.ht/~jakintosh/sessiongate/internal/config"
	"git.sr.ht/~jakintosh/sessiongate/internal/database"
	"git.sr.ht/~jakintosh/sessiongate/internal/debug"
	"git.sr.ht/~jakintosh/sessiongate/internal/logging"
	"git.sr.ht/~jakintosh/sessiongate/internal/policy"
	"git.sr.ht/~jakintosh/sessiongate/internal/routing"
	"git.sr.ht/~jakintosh/sessiongate/pkg/client"
	"git.sr.ht/~jakintosh/sessiongate/pkg/gate"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v\n", err)
	}
	logger := logging.Init(cfg.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(
	cfg *config.Config,
	logger *slog.Logger,
) error {
	db := database.NewSQLiteStore(cfg.DBPath)
	defer db.Close()

	catalog, err := policy.NewCatalog(cfg.PolicyDir, logger)
	if err != nil {
		return fmt.Errorf("failed to load region policies: %w", err)
	}

	observer := session.LogObserver{Logger: logger}
	registry := gate.NewRegistry(db, observer, gate.CookieOptions{
		Secure: cfg.SecureCookies,
	}, logger)

	provider := client.New(client.Config{
		ProviderURL: cfg.ProviderURL,
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL(),
		Logger:      logger,
	})

	regions := routing.DefaultRegions
	pages, err := app.New(app.Paths{
		Home:         routing.PathHome,
		LoginStart:   routing.PathLoginStart,
		Logout:       routing.PathLogout,
		AccessDenied: routing.PathAccessDenied,
	}, routing.Links(regions), logger)
	if err != nil {
		return fmt.Errorf("failed to build pages: %w", err)
	}

	var inspector *debug.Inspector
	if cfg.Debug {
		logger.Warn("debug inspector enabled; do not run this in production")
		inspector = &debug.Inspector{
			Gate:   &gate.Gate{Region: regions[0].Name, Policy: catalog},
			Logger: logger,
		}
	}

	limiter := routing.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	router := routing.BuildRouter(routing.Options{
		Registry: registry,
		Callback: &client.Callback{
			Provider:    provider,
			States:      client.NewStateStore(cfg.StateTTL),
			Sessions:    registry,
			SuccessPath: routing.PathHome,
			LoginPath:   routing.PathLogin,
			Logger:      logger,
		},
		Logout: &gate.Logout{
			Provider:  provider,
			LoginPath: routing.PathLogin,
			Logger:    logger,
		},
		Pages:     pages,
		Policy:    catalog,
		Regions:   regions,
		Limiter:   limiter,
		Inspector: inspector,
		Observer:  observer,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:     cfg.Addr,
		Handler:  router,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "provider", cfg.ProviderURL)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return catalog.Watch(ctx)
	})
	g.Go(func() error {
		return registry.Run(ctx, cfg.SweepInterval, cfg.TabIdleTTL)
	})
	g.Go(func() error {
		return limiter.Run(ctx)
	})

	return g.Wait()
}
