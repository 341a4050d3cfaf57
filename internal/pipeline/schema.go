package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"axmed/internal"
)

var ErrUnknownSchema = errors.New("unknown upload schema")

// TargetField is one column of an upload schema. Patterns are lower-case
// substrings probed against uploaded headers in declaration order.
type TargetField struct {
	Key      internal.FieldKey
	Label    string
	Patterns []string
	Default  string
}

// Schema is the ordered field list of one bulk-upload flow. Field order is
// also the auto-match priority.
type Schema struct {
	Name     string
	Fields   []TargetField
	Required []internal.FieldKey
	Template TemplateSpec
}

type TemplateSpec struct {
	FileName string
	Headers  []string
	Example  []string
}

var OrderSchema = Schema{
	Name: "order",
	Fields: []TargetField{
		{Key: internal.FieldMedicineName, Label: "Medicine Name", Patterns: []string{"name", "medicine", "drug", "product", "item", "medication"}},
		{Key: internal.FieldPresentation, Label: "Presentation", Patterns: []string{"form", "type", "presentation", "formulation"}},
		{Key: internal.FieldDosage, Label: "Dosage", Patterns: []string{"strength", "dosage", "dose", "concentration"}},
		{Key: internal.FieldQuantity, Label: "Quantity", Patterns: []string{"qty", "quantity", "amount", "count", "number"}},
		{Key: internal.FieldUnits, Label: "Units", Patterns: []string{"unit", "units", "pack", "package", "uom"}},
		{Key: internal.FieldSIP, Label: "SIP Status", Patterns: []string{"sip", "permit", "import", "status"}, Default: internal.SIPDoesNotApply},
		{Key: internal.FieldPackagingNotes, Label: "Packaging Notes", Patterns: []string{"note", "notes", "comment", "comments", "remarks"}},
	},
	Required: []internal.FieldKey{internal.FieldMedicineName, internal.FieldQuantity},
	Template: TemplateSpec{
		FileName: "order_template.csv",
		Headers:  []string{"Medicine Name", "Form", "Dosage", "Quantity", "Units", "SIP Status", "Notes"},
		Example:  []string{"Amoxicillin", "Tablet", "500mg", "1000", "tablets", "N/A", ""},
	},
}

var PortfolioSchema = Schema{
	Name: "portfolio",
	Fields: []TargetField{
		{Key: internal.FieldMedicineName, Label: "Medicine Name", Patterns: []string{"medicine", "drug", "product", "name", "item"}},
		{Key: internal.FieldPresentation, Label: "Presentation", Patterns: []string{"presentation", "form", "type", "format"}},
		{Key: internal.FieldDosage, Label: "Dosage", Patterns: []string{"dosage", "dose", "strength", "concentration"}},
		{Key: internal.FieldCountries, Label: "Countries", Patterns: []string{"countr", "region", "market", "registration"}},
	},
	Required: []internal.FieldKey{internal.FieldMedicineName},
	Template: TemplateSpec{
		FileName: "portfolio_template.csv",
		Headers:  []string{"Medicine Name", "Presentation", "Dosage", "Countries"},
		Example:  []string{"Amoxicillin", "Tablet", "500mg", "Ghana, Nigeria"},
	},
}

func SchemaByName(name string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OrderSchema.Name:
		return OrderSchema, nil
	case PortfolioSchema.Name:
		return PortfolioSchema, nil
	}
	return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
}

func (s Schema) Field(key internal.FieldKey) (TargetField, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return TargetField{}, false
}

func (s Schema) Keys() []internal.FieldKey {
	out := make([]internal.FieldKey, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Key)
	}
	return out
}

// Defaults returns a row with every field of the schema at its default.
func (s Schema) Defaults() internal.NormalizedRow {
	var row internal.NormalizedRow
	for _, f := range s.Fields {
		row.Set(f.Key, f.Default)
	}
	return row
}

// Values returns the row's values in schema field order.
func (s Schema) Values(row internal.NormalizedRow) []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, row.Get(f.Key))
	}
	return out
}

// Map returns the row as a map holding exactly the schema's keys.
func (s Schema) Map(row internal.NormalizedRow) map[internal.FieldKey]string {
	out := make(map[internal.FieldKey]string, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Key] = row.Get(f.Key)
	}
	return out
}

func (s Schema) Labels() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Label)
	}
	return out
}
