package pipeline

import (
	"strings"

	"axmed/internal"
)

// IsValidRow reports whether every required field of the schema is set.
func IsValidRow(schema Schema, row internal.NormalizedRow) bool {
	for _, key := range schema.Required {
		if strings.TrimSpace(row.Get(key)) == "" {
			return false
		}
	}
	return true
}

func ValidRows(schema Schema, rows []internal.NormalizedRow) []internal.NormalizedRow {
	out := make([]internal.NormalizedRow, 0, len(rows))
	for _, r := range rows {
		if IsValidRow(schema, r) {
			out = append(out, r)
		}
	}
	return out
}
