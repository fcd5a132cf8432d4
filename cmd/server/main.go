package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/datacrew/internal/config"
	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/database"
	"github.com/JonMunkholm/datacrew/internal/llm"
	"github.com/JonMunkholm/datacrew/internal/logging"
	"github.com/JonMunkholm/datacrew/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"analysis_max_concurrent", cfg.Analysis.MaxConcurrent,
		"database", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	model, err := llm.New(cfg.LLM)
	if err != nil {
		slog.Error("failed to create language model", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Run history goes to Postgres when configured, memory otherwise
	var history core.HistoryStore
	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg, err := core.NewPostgresHistory(ctx, pool)
		if err != nil {
			slog.Error("failed to prepare run history", "error", err)
			os.Exit(1)
		}
		history = pg
	} else {
		slog.Warn("DATABASE_URL not set, run history is kept in memory")
		history = core.NewMemoryHistory(cfg.Analysis.HistorySize)
	}

	limiter := core.NewAnalysisLimiter(cfg.Analysis.MaxConcurrent, cfg.Analysis.MaxWaitTime)
	service := core.NewService(model, history, limiter, core.OptionsFromConfig(cfg))
	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		RetentionDays: cfg.Report.RetentionDays,
		CheckInterval: cfg.Report.CheckInterval,
		ReportDir:     cfg.Report.Dir,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.ActiveCount(); active > 0 {
			slog.Info("waiting for analyses to complete", "active", active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("analyses did not complete in time, cancelling", "error", err)
				service.CancelAll()

				// Cancelled crews give back their slots, then record their outcome
				drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := limiter.WaitForDrain(drainCtx); err != nil {
					slog.Warn("crews still hold analysis slots", "active", limiter.ActiveCount())
				}
				service.WaitForRuns(drainCtx)
				drainCancel()
			} else {
				slog.Info("all analyses completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
