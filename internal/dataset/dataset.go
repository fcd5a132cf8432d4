// Package dataset loads uploaded spreadsheets into an in-memory table.
//
// A Dataset is read once from an upload (CSV or XLSX), can be previewed,
// profiled and cleaned, and can be re-serialized into an in-memory Buffer
// in its original format for download. The crew sees an Excerpt.
package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format identifies the file format of a dataset.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Content types used for uploads and downloads.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV
}

var (
	// ErrEmptyFile is returned when the upload has no header row.
	ErrEmptyFile = errors.New("empty file: no header row found")

	// ErrUnsupportedFormat is returned for anything other than CSV or XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file type: upload a .csv or .xlsx file")
)

// ParseError reports a malformed upload.
type ParseError struct {
	Format Format
	Line   int // 1-based; 0 when unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid %s: line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Dataset is a parsed table: a header row and data rows of text cells.
type Dataset struct {
	Name    string
	Format  Format
	Headers []string
	Rows    [][]string
}

// NumRows returns the number of data rows (header excluded).
func (d *Dataset) NumRows() int {
	return len(d.Rows)
}

// NumColumns returns the number of header columns.
func (d *Dataset) NumColumns() int {
	return len(d.Headers)
}

// Cell returns the value at row, col or "" when the row is short.
func (d *Dataset) Cell(row, col int) string {
	if row < 0 || row >= len(d.Rows) || col < 0 || col >= len(d.Rows[row]) {
		return ""
	}
	return d.Rows[row][col]
}

// Column returns the index of the named column (case-insensitive), or -1.
func (d *Dataset) Column(name string) int {
	for i, h := range d.Headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// DetectFormat picks the format from the file extension, then the content
// type, then the leading bytes (XLSX files are zip archives).
func DetectFormat(name, contentType string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}

	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case ContentTypeCSV, "text/plain", "text/tab-separated-values":
		return FormatCSV, nil
	case ContentTypeXLSX:
		return FormatXLSX, nil
	}

	if bytes.HasPrefix(head, []byte("PK\x03\x04")) {
		return FormatXLSX, nil
	}
	return "", ErrUnsupportedFormat
}

// Load parses an uploaded file. name and contentType come from the
// multipart header and are used to pick the parser.
func Load(r io.Reader, name, contentType string) (*Dataset, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}

	format, err := DetectFormat(name, contentType, head)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(br)
	default:
		rows, err = readCSV(br)
	}
	if err != nil {
		return nil, err
	}

	return fromRows(name, format, rows)
}

// New builds a dataset from a header and rows, applying the same
// normalization as Load.
func New(name string, format Format, headers []string, rows [][]string) (*Dataset, error) {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, headers)
	all = append(all, rows...)
	return fromRows(name, format, all)
}

func fromRows(name string, format Format, rows [][]string) (*Dataset, error) {
	// Leading blank lines are common in hand-edited sheets
	for len(rows) > 0 && isBlankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	headers := normalizeHeaders(rows[0])
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, row)
			row = padded
		}
		data = append(data, row)
	}

	return &Dataset{
		Name:    filepath.Base(name),
		Format:  format,
		Headers: headers,
		Rows:    data,
	}, nil
}

// normalizeHeaders trims header cells and names blank ones Column_N.
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// record returns row i truncated to the header width.
func (d *Dataset) record(i int) []string {
	row := d.Rows[i]
	if len(row) > len(d.Headers) {
		return row[:len(d.Headers)]
	}
	return row
}
