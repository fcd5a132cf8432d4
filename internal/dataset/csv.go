package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of the decoded input is inspected for the delimiter.
const sniffSize = 8 * 1024

// candidate delimiters in order of preference on ties
var delimiters = []rune{',', ';', '\t'}

// readCSV decodes and parses CSV input.
//
// A UTF-8 or UTF-16 byte order mark selects the decoding and is stripped;
// without one the input is treated as UTF-8 and invalid sequences become
// U+FFFD instead of failing the upload.
func readCSV(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	br := bufio.NewReaderSize(decoded, sniffSize*2)

	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, &ParseError{Format: FormatCSV, Err: err}
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(sample)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Format: FormatCSV, Line: pe.Line, Err: pe.Err}
			}
			return nil, &ParseError{Format: FormatCSV, Err: err}
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// sniffDelimiter counts candidate delimiters outside quotes on the first
// line and returns the most frequent one, defaulting to a comma.
func sniffDelimiter(sample []byte) rune {
	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, c := range string(sample) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if c == '\n' || c == '\r' {
			break
		}
		counts[c]++
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// writeCSV writes the header and rows as comma-separated UTF-8, without an
// index column.
func writeCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Headers); err != nil {
		return err
	}
	for i := range d.Rows {
		if err := cw.Write(d.record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
