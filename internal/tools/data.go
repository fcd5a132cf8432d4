package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/datacrew/internal/dataset"
)

// CleaningTool cleans the dataset of the current run. The cleaned copy is
// kept so it can be offered for download once the run finishes.
type CleaningTool struct {
	source      *dataset.Dataset
	previewRows int

	mu      sync.Mutex
	cleaned *dataset.Dataset
	report  dataset.CleanReport
}

// NewCleaningTool binds a cleaning tool to ds.
func NewCleaningTool(ds *dataset.Dataset, previewRows int) *CleaningTool {
	if previewRows <= 0 {
		previewRows = 20
	}
	return &CleaningTool{source: ds, previewRows: previewRows}
}

func (t *CleaningTool) Name() string { return "clean_data" }

func (t *CleaningTool) Description() string {
	return "Clean the uploaded dataset: trims whitespace, drops empty and duplicate rows, normalizes header names. " +
		"Input may name steps to skip, e.g. \"skip duplicates\" (trim, empty, duplicates, headers); leave it empty to run all steps. " +
		"Returns what changed and a preview of the cleaned data."
}

// Run cleans the dataset with every step not named in input.
func (t *CleaningTool) Run(ctx context.Context, input string) (string, error) {
	opts := dataset.DefaultCleanOptions()
	lower := strings.ToLower(input)
	if strings.Contains(lower, "skip") || strings.Contains(lower, "keep") || strings.Contains(lower, "without") {
		if strings.Contains(lower, "trim") {
			opts.TrimSpace = false
		}
		if strings.Contains(lower, "empty") {
			opts.DropEmptyRows = false
		}
		if strings.Contains(lower, "duplicate") {
			opts.DropDuplicates = false
		}
		if strings.Contains(lower, "header") {
			opts.NormalizeHeader = false
		}
	}

	cleaned, report := t.source.Clean(opts)

	t.mu.Lock()
	t.cleaned = cleaned
	t.report = report
	t.mu.Unlock()

	return fmt.Sprintf("Cleaning report:\n%s\nCleaned data (first %d rows):\n%s",
		report, t.previewRows, cleaned.Markdown(t.previewRows)), nil
}

// Result returns the most recent cleaned dataset, or nil when the tool
// was never run.
func (t *CleaningTool) Result() (*dataset.Dataset, dataset.CleanReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleaned, t.report
}

// ProfileTool describes the columns of the current run's dataset.
type ProfileTool struct {
	source *dataset.Dataset
}

// NewProfileTool binds a profile tool to ds.
func NewProfileTool(ds *dataset.Dataset) *ProfileTool {
	return &ProfileTool{source: ds}
}

func (t *ProfileTool) Name() string { return "profile_data" }

func (t *ProfileTool) Description() string {
	return "Profile the uploaded dataset: type, missing values, unique values, min/max/mean and samples per column. " +
		"Input may be a column name to profile only that column; leave it empty for all columns."
}

// Run returns the profile as Markdown.
func (t *ProfileTool) Run(ctx context.Context, input string) (string, error) {
	name := strings.TrimSpace(input)
	if name == "" || strings.EqualFold(name, "all") {
		return t.source.ProfileMarkdown(), nil
	}

	col := t.source.Column(name)
	if col < 0 {
		return fmt.Sprintf("Column %q not found. Columns: %s.", name, strings.Join(t.source.Headers, ", ")), nil
	}

	p := t.source.Profile()[col]
	var b strings.Builder
	fmt.Fprintf(&b, "Column %q: %s\n", p.Name, p.Kind)
	fmt.Fprintf(&b, "- non-empty: %d\n- missing: %d\n- unique: %d\n", p.NonEmpty, p.Missing, p.Unique)
	if p.Kind == dataset.KindNumeric {
		fmt.Fprintf(&b, "- min: %g\n- max: %g\n- mean: %g\n", p.Min, p.Max, p.Mean)
	}
	if len(p.Samples) > 0 {
		fmt.Fprintf(&b, "- samples: %s\n", strings.Join(p.Samples, ", "))
	}
	return b.String(), nil
}
