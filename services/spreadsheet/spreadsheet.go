// Package spreadsheet encodes and decodes core.Table values as CSV or XLSX files.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/promissory/core"
)

type Format string

const (
	CSV   Format = "csv"
	Excel Format = "excel"

	CSVContentType  = "text/csv"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("file has no header row")
)

// ParseFormat accepts the `export` query values; ok is false for anything else.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case CSV:
		return CSV, true
	case Excel:
		return Excel, true
	}
	return "", false
}

func (f Format) Ext() string {
	if f == Excel {
		return ".xlsx"
	}
	return ".csv"
}

func (f Format) ContentType() string {
	if f == Excel {
		return XLSXContentType
	}
	return CSVContentType
}

// Write encodes t in the given format.
func Write(w io.Writer, f Format, t *core.Table) error {
	if f == Excel {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

func WriteCSV(w io.Writer, t *core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return pkgerrors.Wrap(err, "writing csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return pkgerrors.Wrap(err, "writing csv rows")
	}
	return nil
}

// WriteXLSX writes t to a single-sheet workbook named after the table.
func WriteXLSX(w io.Writer, t *core.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return pkgerrors.Wrap(err, "naming sheet")
	}

	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return pkgerrors.Wrapf(err, "writing row %d", i+1)
		}
	}
	return pkgerrors.Wrap(f.Write(w), "writing workbook")
}

// ReadTable decodes an uploaded .csv or .xlsx file (first sheet), picking the decoder from the filename.
func ReadTable(filename string, r io.Reader) (*core.Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, ErrUnsupportedFileType
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	t := core.NewTable(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)), rows[0]...)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		t.Append(row...)
	}
	return t, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "reading csv")
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff") // BOM
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	return rows, pkgerrors.Wrap(err, "reading sheet")
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
