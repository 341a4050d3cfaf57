package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first sheet of a workbook. Cells come back as excelize
// formats them, so numbers and dates keep their displayed text.
func (r *Reader) readXLSX(ctx context.Context, blob []byte) (Table, error) {
	if bytes.HasPrefix(blob, []byte{0xD0, 0xCF, 0x11, 0xE0}) {
		return Table{}, &ParseError{Format: FormatXLS, Err: errors.New("legacy .xls workbooks are not supported; save the file as .xlsx or .csv")}
	}

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{Format: FormatXLSX}, nil
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	next := func() ([]string, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Error()
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, false, err
		}
		return cols, true, nil
	}

	table, err := buildTable(ctx, next, r.MaxRows)
	if err != nil {
		return Table{}, err
	}
	table.Format = FormatXLSX
	table.Sheet = sheet
	return table, nil
}
