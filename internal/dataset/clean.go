package dataset

import (
	"fmt"
	"strings"
)

// CleanOptions selects the cleaning steps. The zero value runs none;
// DefaultCleanOptions runs all of them.
type CleanOptions struct {
	TrimSpace       bool
	DropEmptyRows   bool
	DropDuplicates  bool
	NormalizeHeader bool
}

// DefaultCleanOptions enables every cleaning step.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		TrimSpace:       true,
		DropEmptyRows:   true,
		DropDuplicates:  true,
		NormalizeHeader: true,
	}
}

// CleanReport counts what Clean changed.
type CleanReport struct {
	RowsBefore        int `json:"rows_before"`
	RowsAfter         int `json:"rows_after"`
	TrimmedCells      int `json:"trimmed_cells"`
	EmptyRowsDropped  int `json:"empty_rows_dropped"`
	DuplicatesDropped int `json:"duplicates_dropped"`
	HeadersRenamed    int `json:"headers_renamed"`
}

// String renders the report as a short bullet list.
func (r CleanReport) String() string {
	return fmt.Sprintf("- rows: %d -> %d\n- trimmed cells: %d\n- empty rows dropped: %d\n- duplicate rows dropped: %d\n- headers renamed: %d\n",
		r.RowsBefore, r.RowsAfter, r.TrimmedCells, r.EmptyRowsDropped, r.DuplicatesDropped, r.HeadersRenamed)
}

// Clean returns a cleaned copy of the dataset. The receiver is not modified.
func (d *Dataset) Clean(opts CleanOptions) (*Dataset, CleanReport) {
	report := CleanReport{RowsBefore: len(d.Rows)}

	headers := make([]string, len(d.Headers))
	copy(headers, d.Headers)
	if opts.NormalizeHeader {
		for i, h := range headers {
			n := strings.Join(strings.Fields(h), " ")
			if n != h {
				headers[i] = n
				report.HeadersRenamed++
			}
		}
	}

	seen := make(map[string]struct{}, len(d.Rows))
	rows := make([][]string, 0, len(d.Rows))
	for i := range d.Rows {
		src := d.record(i)
		row := make([]string, len(src))
		for j, v := range src {
			if opts.TrimSpace {
				t := strings.TrimSpace(v)
				if t != v {
					report.TrimmedCells++
				}
				v = t
			}
			row[j] = v
		}

		if opts.DropEmptyRows && isBlankRow(row) {
			report.EmptyRowsDropped++
			continue
		}
		if opts.DropDuplicates {
			key := strings.Join(row, "\x1f")
			if _, dup := seen[key]; dup {
				report.DuplicatesDropped++
				continue
			}
			seen[key] = struct{}{}
		}
		rows = append(rows, row)
	}
	report.RowsAfter = len(rows)

	return &Dataset{
		Name:    d.Name,
		Format:  d.Format,
		Headers: headers,
		Rows:    rows,
	}, report
}
