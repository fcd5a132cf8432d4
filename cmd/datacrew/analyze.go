package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacrew/internal/config"
	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/database"
	"github.com/JonMunkholm/datacrew/internal/llm"
	"github.com/JonMunkholm/datacrew/internal/logging"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		reportDir   string
		cleanedPath string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the analysis crew on a CSV or XLSX file and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if reportDir != "" {
				cfg.Report.Dir = reportDir
			}
			slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			ds, err := openDataset(args[0], svc.ParseUpload)
			if err != nil {
				return err
			}
			slog.Info("dataset loaded", "file", ds.Name, "rows", ds.NumRows(), "columns", ds.NumColumns())

			rec, err := svc.Analyze(ctx, ds)
			if err != nil {
				return err
			}

			if cleanedPath != "" {
				if err := writeCleaned(svc, rec.ID, cleanedPath); err != nil {
					slog.Warn("cleaned data not written", "error", err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rec); err != nil {
					return err
				}
			} else if rec.Status == core.PhaseComplete {
				fmt.Fprintln(out, rec.Result)
			}

			if rec.Status != core.PhaseComplete {
				return fmt.Errorf("analysis %s: %s", rec.Status, rec.Error)
			}
			if rec.ReportPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", rec.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for the report (default: REPORT_DIR)")
	cmd.Flags().StringVar(&cleanedPath, "cleaned", "", "Write the cleaned dataset to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full run record as JSON")
	return cmd
}

// newService wires the model and history the same way the server does.
func newService(ctx context.Context, cfg *config.Config) (*core.Service, func(), error) {
	model, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var history core.HistoryStore
	if cfg.Database.Enabled() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg, err := core.NewPostgresHistory(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		history, closeFn = pg, pool.Close
	}

	limiter := core.NewAnalysisLimiter(1, cfg.Analysis.MaxWaitTime)
	return core.NewService(model, history, limiter, core.OptionsFromConfig(cfg)), closeFn, nil
}

func writeCleaned(svc *core.Service, runID, path string) error {
	buf, err := svc.CleanedData(runID)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
