package dataset

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the sheet written when a dataset is re-serialized as XLSX.
const SheetName = "Sheet1"

var errNoSheets = errors.New("workbook has no sheets")

// readXLSX returns the rows of the first sheet.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &ParseError{Format: FormatXLSX, Err: errNoSheets}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	return rows, nil
}

// writeXLSX writes the dataset to a single-sheet workbook. Cells that are
// plain numbers are stored as numbers so spreadsheet tools can compute on them.
func writeXLSX(w io.Writer, d *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(d.Headers))
	for i, h := range d.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i := range d.Rows {
		rec := d.record(i)
		values := make([]interface{}, len(rec))
		for j, v := range rec {
			values[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// cellValue converts numeric text that survives a float round trip.
func cellValue(v string) interface{} {
	s := strings.TrimSpace(v)
	if s == "" || len(s) > 15 {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}
	return v
}
