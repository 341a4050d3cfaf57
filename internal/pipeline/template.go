package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateCSV renders the downloadable template of a schema: the header row
// followed by one example row.
func TemplateCSV(schema Schema) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.Template.Headers); err != nil {
		return nil, err
	}
	if err := w.Write(schema.Template.Example); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func WriteTemplateXLSX(schema Schema, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, schema.Name); err != nil {
		return err
	}
	sheet = schema.Name

	for r, row := range [][]string{schema.Template.Headers, schema.Template.Example} {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellStr(sheet, cell, v)
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(schema.Template.Headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	_, err = f.WriteTo(out)
	return err
}
