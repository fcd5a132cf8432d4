package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacrew/internal/config"
	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/database"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses stored in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("history needs DATABASE_URL; without it runs are only kept by the server process")
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			history, err := core.NewPostgresHistory(ctx, pool)
			if err != nil {
				return err
			}
			runs, err := history.List(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tROWS\tSTARTED\tDURATION\tCODE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.ID, r.FileName, r.Status, r.Rows,
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Duration().Round(time.Second), r.ErrorCode)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}
