package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSampleRows is the number of rows an Excerpt shows by default.
const DefaultSampleRows = 20

// Preview is the dataframe view shown after upload.
type Preview struct {
	Name      string     `json:"name"`
	Format    Format     `json:"format"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Truncated bool       `json:"truncated"`
}

// Preview returns the header and at most limit rows. A limit <= 0 returns
// every row. Rows wider than the header are shown in full.
func (d *Dataset) Preview(limit int) Preview {
	n := len(d.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = d.Rows[i]
	}
	return Preview{
		Name:      d.Name,
		Format:    d.Format,
		Headers:   d.Headers,
		Rows:      rows,
		TotalRows: len(d.Rows),
		Truncated: n < len(d.Rows),
	}
}

// Markdown renders the header and at most limit rows as a Markdown table.
func (d *Dataset) Markdown(limit int) string {
	p := d.Preview(limit)

	var b strings.Builder
	writeMarkdownRow(&b, p.Headers)
	b.WriteString("|")
	for range p.Headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range p.Rows {
		writeMarkdownRow(&b, row)
	}
	if p.Truncated {
		b.WriteString("\n_")
		b.WriteString(strconv.Itoa(p.TotalRows - len(p.Rows)))
		b.WriteString(" more rows not shown_\n")
	}
	return b.String()
}

// Excerpt is the view of a dataset handed to the analysis crew: its shape
// and a Markdown sample of the first Rows rows.
type Excerpt struct {
	Dataset *Dataset
	Rows    int
}

// Summary renders the excerpt. Rows <= 0 uses DefaultSampleRows.
func (e Excerpt) Summary() string {
	d, n := e.Dataset, e.Rows
	if n <= 0 {
		n = DefaultSampleRows
	}
	return fmt.Sprintf("File %q (%s, %d rows x %d columns)\n\n%s",
		d.Name, d.Format, d.NumRows(), d.NumColumns(), d.Markdown(n))
}

func writeMarkdownRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeMarkdownCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var markdownCellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escapeMarkdownCell(s string) string {
	return markdownCellReplacer.Replace(strings.TrimSpace(s))
}
