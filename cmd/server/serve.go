package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "neighborly/internal/jwt_token"
	"neighborly/internal/marketplace/handler"
	"neighborly/internal/platform/config"
	"neighborly/internal/platform/database"
	"neighborly/internal/platform/httpserver"
	"neighborly/internal/platform/middleware"
	"neighborly/pkg/platform/httputil"
)

func serve(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	if a.db != nil {
		if err := database.Migrate(ctx, a.db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	srv := httpserver.New(cfg.Addr, a.router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting neighborly", "addr", cfg.Addr, "environment", cfg.Environment, "postgres", cfg.UsesPostgres())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Sweep.Enabled {
		g.Go(func() error {
			return a.scheduler.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(a.log))
	r.Use(middleware.Logger(a.log))
	r.Use(middleware.Latency(a.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.health(r.Context()); err != nil {
			a.log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(a.cfg.JWTSigningKey, a.cfg.JWTIssuer))
	handler.New(a.service, validator, a.log).Register(r)
	return r
}

func migrate(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if !cfg.UsesPostgres() {
		return errors.New("NEIGHBORLY_DATABASE_URL is required for migrate")
	}
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.InfoContext(ctx, "schema applied")
	return nil
}

// sweepOnce runs a single tick for cron-driven deployments. With in-memory stores
// there is nothing durable to sweep, so it refuses to run.
func sweepOnce(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if !cfg.UsesPostgres() {
		return errors.New("NEIGHBORLY_DATABASE_URL is required for sweep")
	}
	a, err := newApp(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		log.InfoContext(ctx, "sweep skipped, another sweeper holds the lock")
		return nil
	}
	for _, kr := range res.Kinds {
		log.InfoContext(ctx, "sweep kind finished", "kind", kr.Kind, "outcomes", kr.Outcomes, "error", kr.Error)
	}
	return nil
}
