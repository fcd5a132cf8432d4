package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColumnKind is the inferred type of a column.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
	KindEmpty   ColumnKind = "empty"
)

// numericThreshold is the share of non-empty cells that must parse as
// numbers for a column to count as numeric.
const numericThreshold = 0.8

// maxSamples is the number of example values kept per column.
const maxSamples = 3

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name     string     `json:"name"`
	Kind     ColumnKind `json:"kind"`
	NonEmpty int        `json:"non_empty"`
	Missing  int        `json:"missing"`
	Unique   int        `json:"unique"`
	Min      float64    `json:"min,omitempty"`
	Max      float64    `json:"max,omitempty"`
	Mean     float64    `json:"mean,omitempty"`
	Samples  []string   `json:"samples,omitempty"`
}

// Profile computes a summary for every column.
func (d *Dataset) Profile() []ColumnProfile {
	profiles := make([]ColumnProfile, len(d.Headers))
	for col, name := range d.Headers {
		profiles[col] = d.profileColumn(col, name)
	}
	return profiles
}

func (d *Dataset) profileColumn(col int, name string) ColumnProfile {
	p := ColumnProfile{Name: name}
	seen := make(map[string]struct{})

	var numeric int
	var sum, running float64
	minV, maxV := math.Inf(1), math.Inf(-1)

	for row := range d.Rows {
		v := strings.TrimSpace(d.Cell(row, col))
		if v == "" {
			p.Missing++
			continue
		}
		p.NonEmpty++
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			if len(p.Samples) < maxSamples {
				p.Samples = append(p.Samples, v)
			}
		}
		if f, ok := parseNumber(v); ok {
			numeric++
			sum += f
			running += (f - running) / float64(numeric)
			minV = math.Min(minV, f)
			maxV = math.Max(maxV, f)
		}
	}
	p.Unique = len(seen)

	switch {
	case p.NonEmpty == 0:
		p.Kind = KindEmpty
	case float64(numeric)/float64(p.NonEmpty) >= numericThreshold:
		p.Kind = KindNumeric
		p.Min, p.Max = minV, maxV
		p.Mean = sum / float64(numeric)
		if math.IsInf(p.Mean, 0) {
			p.Mean = running
		}
	default:
		p.Kind = KindText
	}
	return p
}

// parseNumber accepts plain decimals and thousands-separated values
// like "1,234.5". NaN and infinities are not numbers here: they would
// poison the column statistics.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && strings.Contains(s, ",") {
		f, err = strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ProfileMarkdown renders the profile as a Markdown table.
func (d *Dataset) ProfileMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows x %d columns\n\n", d.NumRows(), d.NumColumns())
	b.WriteString("| column | kind | non-empty | missing | unique | min | max | mean | samples |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, p := range d.Profile() {
		minS, maxS, meanS := "", "", ""
		if p.Kind == KindNumeric {
			minS = formatFloat(p.Min)
			maxS = formatFloat(p.Max)
			meanS = formatFloat(p.Mean)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %s | %s | %s | %s |\n",
			escapeMarkdownCell(p.Name), p.Kind, p.NonEmpty, p.Missing, p.Unique,
			minS, maxS, meanS, escapeMarkdownCell(strings.Join(p.Samples, ", ")))
	}
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
