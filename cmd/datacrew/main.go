// Command datacrew runs the data analysis crew from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacrew/internal/core"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, "error:", core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "datacrew",
		Short:         "Analyze CSV and Excel files with a crew of AI agents",
		Long:          "datacrew uploads a dataset to a researcher, a cleaning expert and a reporter agent, and writes a Markdown report.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newPreviewCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}
