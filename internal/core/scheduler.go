package core

// scheduler.go runs the retention job: it deletes run history and report
// files older than the configured retention. The job logs failures and
// keeps running; a failed cycle is retried on the next tick.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionConfig controls the retention job. Zero values use defaults.
type RetentionConfig struct {
	RetentionDays int           // default: 30
	CheckInterval time.Duration // default: 24h
	ReportDir     string        // default: the service's report dir
}

func (c RetentionConfig) withDefaults(reportDir string) RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	if c.ReportDir == "" {
		c.ReportDir = reportDir
	}
	return c
}

// StartRetentionScheduler runs the retention job immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults(s.opts.ReportDir)
	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
		"report_dir", cfg.ReportDir,
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	runs, reports, err := s.PurgeBefore(ctx, cutoff, cfg.ReportDir)
	if err != nil {
		slog.Error("retention job failed", "error", err)
		return
	}
	slog.Info("retention job completed",
		"runs_deleted", runs,
		"reports_deleted", reports,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PurgeBefore deletes history started before cutoff, their report
// directories, and any other report directory last modified before cutoff.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time, reportDir string) (runs, reports int, err error) {
	ids, err := s.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	removed := make(map[string]bool)
	for _, id := range ids {
		dir := filepath.Join(reportDir, id)
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove report", "run_id", id, "error", rmErr)
			continue
		}
		removed[id] = true
	}

	entries, err := os.ReadDir(reportDir)
	if err != nil && !os.IsNotExist(err) {
		return len(ids), len(removed), err
	}
	for _, e := range entries {
		if !e.IsDir() || removed[e.Name()] {
			continue
		}
		if _, active := s.getRun(e.Name()); active {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if rmErr := os.RemoveAll(filepath.Join(reportDir, e.Name())); rmErr != nil {
			slog.Warn("failed to remove report", "run_id", e.Name(), "error", rmErr)
			continue
		}
		removed[e.Name()] = true
	}

	return len(ids), len(removed), nil
}
