package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/database"
	"github.com/huzaifasad/backendforfamily/internal/handler"
	"github.com/huzaifasad/backendforfamily/internal/logging"
	"github.com/huzaifasad/backendforfamily/internal/middleware"
	"github.com/huzaifasad/backendforfamily/internal/scheduler"
	"github.com/huzaifasad/backendforfamily/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", "path", cfg.Database.Path)

	g, gctx := errgroup.WithContext(ctx)

	var opts server.Options
	if cfg.Redis.URL != "" {
		rdb, err := middleware.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts.Limiter = middleware.NewRedisLimiter(rdb, "familyhub:ratelimit:")
		logger.Info("rate limiting through redis")
	} else {
		mem := middleware.NewMemoryLimiter()
		opts.Limiter = mem
		g.Go(func() error {
			ticker := time.NewTicker(cfg.HTTP.RateLimitWindow)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					mem.Cleanup()
				}
			}
		})
	}

	srv := server.New(db, cfg, opts, logger)

	if cfg.Auth.AdminEmail != "" {
		if err := handler.EnsureAdmin(srv.Users(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger.With("component", "auth")); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.LateSweepSpec, srv.Tasks(), logger.With("component", "scheduler"))
		if err != nil {
			return err
		}
		if srv.Backups().Enabled() {
			if err := sched.Add("backup", cfg.Backup.Schedule, srv.Backups().RunScheduled); err != nil {
				return err
			}
		}
		sched.Start()
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server starting", "addr", httpServer.Addr, "env", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
