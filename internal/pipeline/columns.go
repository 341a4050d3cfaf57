package pipeline

import "strings"

// AutoMatch proposes a mapping for headers. Headers are visited in order and
// each is tested against the schema fields in declaration order. The first
// field with a pattern contained in the lower-cased header decides: the
// header gets that field if no earlier header claimed it, and stays unmapped
// otherwise.
func AutoMatch(schema Schema, headers []string) *ColumnMapping {
	m := NewColumnMapping(schema)
	for _, header := range headers {
		lower := strings.ToLower(header)
		for _, field := range schema.Fields {
			if !containsAny(lower, field.Patterns) {
				continue
			}
			if _, taken := m.Header(field.Key); !taken {
				if _, mapped := m.Field(header); !mapped {
					_ = m.Bind(header, field.Key)
				}
			}
			break
		}
	}
	return m
}

func containsAny(s string, probes []string) bool {
	for _, p := range probes {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
