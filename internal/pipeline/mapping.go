package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"axmed/internal"
)

var (
	ErrFieldClaimed = errors.New("field already mapped to another column")
	ErrUnknownField = errors.New("field is not part of the schema")
)

// ColumnMapping binds uploaded headers to schema fields. A field is bound to
// at most one header at a time.
type ColumnMapping struct {
	schema  Schema
	byField map[internal.FieldKey]string
	order   []string
}

type MappingEntry struct {
	Header string            `json:"header"`
	Field  internal.FieldKey `json:"field"`
}

func NewColumnMapping(schema Schema) *ColumnMapping {
	return &ColumnMapping{schema: schema, byField: map[internal.FieldKey]string{}}
}

func (m *ColumnMapping) Schema() Schema { return m.schema }

// Bind maps header to field. A header that was already mapped moves to the
// new field.
func (m *ColumnMapping) Bind(header string, field internal.FieldKey) error {
	if _, ok := m.schema.Field(field); !ok {
		return fmt.Errorf("%w: %s (%s)", ErrUnknownField, field, m.schema.Name)
	}
	if owner, ok := m.byField[field]; ok {
		if owner == header {
			return nil
		}
		return fmt.Errorf("%w: %s is taken by %q", ErrFieldClaimed, field, owner)
	}
	m.Unbind(header)
	m.byField[field] = header
	m.order = append(m.order, header)
	return nil
}

func (m *ColumnMapping) Unbind(header string) {
	field, ok := m.Field(header)
	if !ok {
		return
	}
	delete(m.byField, field)
	for i, h := range m.order {
		if h == header {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *ColumnMapping) Field(header string) (internal.FieldKey, bool) {
	for field, h := range m.byField {
		if h == header {
			return field, true
		}
	}
	return "", false
}

func (m *ColumnMapping) Header(field internal.FieldKey) (string, bool) {
	h, ok := m.byField[field]
	return h, ok
}

func (m *ColumnMapping) Len() int { return len(m.byField) }

// Entries lists bindings in the order they were made.
func (m *ColumnMapping) Entries() []MappingEntry {
	out := make([]MappingEntry, 0, len(m.order))
	for _, h := range m.order {
		field, _ := m.Field(h)
		out = append(out, MappingEntry{Header: h, Field: field})
	}
	return out
}

// Unmapped returns the headers with no binding, in upload order.
func (m *ColumnMapping) Unmapped(headers []string) []string {
	var out []string
	for _, h := range headers {
		if _, ok := m.Field(h); !ok {
			out = append(out, h)
		}
	}
	return out
}

func (m *ColumnMapping) Map() map[string]string {
	out := make(map[string]string, len(m.byField))
	for field, h := range m.byField {
		out[h] = string(field)
	}
	return out
}

func (m *ColumnMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// MappingFromMap rebuilds a mapping from its {header: field} form. Bindings
// are applied in schema field order so conflicts resolve deterministically.
func MappingFromMap(schema Schema, in map[string]string) (*ColumnMapping, error) {
	byField := map[internal.FieldKey][]string{}
	for h, f := range in {
		byField[internal.FieldKey(f)] = append(byField[internal.FieldKey(f)], h)
	}
	m := NewColumnMapping(schema)
	for f := range byField {
		if _, ok := schema.Field(f); !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownField, f, schema.Name)
		}
	}
	for _, key := range schema.Keys() {
		headers := byField[key]
		if len(headers) > 1 {
			return nil, fmt.Errorf("%w: %s is mapped from %q", ErrFieldClaimed, key, headers)
		}
		if len(headers) == 1 {
			if err := m.Bind(headers[0], key); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ApplyOverrides applies user edits of the form "Header=field". An empty
// field ("Header=") unmaps the header. A field named by an override is taken
// from whichever column held it before; two overrides naming the same field
// fail with ErrFieldClaimed.
func (m *ColumnMapping) ApplyOverrides(overrides []string) error {
	type edit struct {
		header string
		field  internal.FieldKey
	}
	var (
		binds   []edit
		unbinds []string
	)
	claimed := map[internal.FieldKey]string{}
	for _, raw := range overrides {
		i := strings.LastIndex(raw, "=")
		if i < 0 {
			return fmt.Errorf("invalid mapping override %q: want Header=field", raw)
		}
		header := strings.TrimSpace(raw[:i])
		field := internal.FieldKey(strings.TrimSpace(raw[i+1:]))
		if header == "" {
			return fmt.Errorf("invalid mapping override %q: empty header", raw)
		}
		if field == "" {
			unbinds = append(unbinds, header)
			continue
		}
		if _, ok := m.schema.Field(field); !ok {
			return fmt.Errorf("%w: %s (%s)", ErrUnknownField, field, m.schema.Name)
		}
		if prev, dup := claimed[field]; dup && prev != header {
			return fmt.Errorf("%w: %s is requested for %q and %q", ErrFieldClaimed, field, prev, header)
		}
		claimed[field] = header
		binds = append(binds, edit{header: header, field: field})
	}
	for _, h := range unbinds {
		m.Unbind(h)
	}
	for _, b := range binds {
		if owner, ok := m.Header(b.field); ok && owner != b.header {
			m.Unbind(owner)
		}
		if err := m.Bind(b.header, b.field); err != nil {
			return err
		}
	}
	return nil
}
