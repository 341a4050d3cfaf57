package pipeline

import "axmed/internal"

// ApplyMapping turns raw rows into schema rows, one per input row and in the
// same order. Unmapped fields keep their defaults and values are copied
// verbatim. Bindings to headers a row does not have are ignored.
func ApplyMapping(schema Schema, rows []internal.RawRow, mapping *ColumnMapping) []internal.NormalizedRow {
	var entries []MappingEntry
	if mapping != nil {
		entries = mapping.Entries()
	}
	out := make([]internal.NormalizedRow, 0, len(rows))
	for _, raw := range rows {
		row := schema.Defaults()
		for _, e := range entries {
			if _, ok := schema.Field(e.Field); !ok {
				continue
			}
			if v, ok := raw[e.Header]; ok {
				row.Set(e.Field, v)
			}
		}
		out = append(out, row)
	}
	return out
}
