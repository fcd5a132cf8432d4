package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacrew/internal/core"
	"github.com/JonMunkholm/datacrew/internal/dataset"
)

// previewMaxFileSize caps files read by preview, which runs without configuration.
const previewMaxFileSize = 100 << 20

func newPreviewCommand() *cobra.Command {
	var (
		rows    int
		profile bool
	)

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the first rows of a CSV or XLSX file as a Markdown table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(args[0], func(r io.Reader, name, contentType string, size int64) (*dataset.Dataset, error) {
				if size > previewMaxFileSize {
					return nil, fmt.Errorf("%w: %d bytes", core.ErrFileTooLarge, size)
				}
				return dataset.Load(r, name, contentType)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rows x %d columns (%s)\n\n", ds.Name, ds.NumRows(), ds.NumColumns(), ds.Format)
			fmt.Fprint(out, ds.Markdown(rows))
			if profile {
				fmt.Fprintf(out, "\n%s", ds.ProfileMarkdown())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 10, "Number of rows to show (0 for all)")
	cmd.Flags().BoolVar(&profile, "profile", false, "Also print the column profile")
	return cmd
}

type parseFunc func(r io.Reader, name, contentType string, size int64) (*dataset.Dataset, error)

// openDataset opens path and hands it to parse with its base name and size.
// The analyze command passes Service.ParseUpload so files get the same size
// limit and format detection as uploads.
func openDataset(path string, parse parseFunc) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return parse(f, filepath.Base(path), "", info.Size())
}
