package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"axmed/internal"
	"axmed/internal/util"
)

// ExportRowsToXLSX writes an upload's rows with their catalogue match. The
// row columns follow the schema field order.
func ExportRowsToXLSX(schema Schema, rows []internal.ExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"input_line_no"}
	for _, field := range schema.Fields {
		headers = append(headers, string(field.Key))
	}
	headers = append(headers,
		"match_status", "confidence", "match_reason",
		"medicine_id", "medicine_name", "category",
		"candidate2_name", "candidate2_score",
	)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		col := 0
		set := func(value any) {
			col++
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(row.LineNo)
		for _, field := range schema.Fields {
			v := row.Row.Get(field.Key)
			if field.Key == internal.FieldSIP {
				v = util.SIPLabel(v)
			}
			set(v)
		}
		set(row.MatchStatus)
		set(row.Confidence)
		set(row.MatchReason)
		set(derefInt(row.MedicineID))
		set(derefString(row.MedicineName))
		set(derefString(row.Category))
		set(derefString(row.Candidate2Name))
		set(derefFloat(row.Candidate2Score))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
