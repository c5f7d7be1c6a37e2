package fetcher

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures workbook reading.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet of an XLSX workbook and returns all rows as
// string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = strings.TrimSpace(c.String())
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

// ConvertXLSXToCSV reads one sheet of a workbook and writes it as a
// semicolon-delimited CSV, the delimiter the raw dataset files use.
func ConvertXLSXToCSV(xlsxPath, csvPath string, opts XLSXOptions) error {
	rows, err := ReadXLSX(xlsxPath, opts)
	if err != nil {
		return err
	}

	out, err := os.Create(csvPath)
	if err != nil {
		return eris.Wrapf(err, "xlsx: create %s", csvPath)
	}

	w := csv.NewWriter(out)
	w.Comma = ';'
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			_ = out.Close()
			return eris.Wrap(err, "xlsx: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = out.Close()
		return eris.Wrap(err, "xlsx: flush csv")
	}

	return eris.Wrapf(out.Close(), "xlsx: close %s", csvPath)
}
