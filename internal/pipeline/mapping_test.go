package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"axmed/internal"
)

func TestBindRejectsSecondClaim(t *testing.T) {
	m := NewColumnMapping(OrderSchema)
	if err := m.Bind("Drug", internal.FieldMedicineName); err != nil {
		t.Fatal(err)
	}
	if err := m.Bind("Product", internal.FieldMedicineName); !errors.Is(err, ErrFieldClaimed) {
		t.Fatalf("err=%v", err)
	}
	if err := m.Bind("Drug", internal.FieldMedicineName); err != nil {
		t.Fatalf("rebinding same pair: %v", err)
	}
	if err := m.Bind("Countries", internal.FieldCountries); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err=%v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}
}

func TestBindMovesHeader(t *testing.T) {
	m := NewColumnMapping(OrderSchema)
	_ = m.Bind("Strength", internal.FieldMedicineName)
	if err := m.Bind("Strength", internal.FieldDosage); err != nil {
		t.Fatal(err)
	}
	if f, _ := m.Field("Strength"); f != internal.FieldDosage {
		t.Fatalf("field=%s", f)
	}
	if _, ok := m.Header(internal.FieldMedicineName); ok {
		t.Fatal("medicineName should be free again")
	}
	if err := m.Bind("Drug", internal.FieldMedicineName); err != nil {
		t.Fatal(err)
	}

	m.Unbind("Drug")
	m.Unbind("never mapped")
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}
}

func TestMappingJSON(t *testing.T) {
	m := AutoMatch(OrderSchema, []string{"Drug", "Qty"})
	blob, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != `{"Drug":"medicineName","Qty":"quantity"}` {
		t.Fatalf("json=%s", blob)
	}

	var raw map[string]string
	_ = json.Unmarshal(blob, &raw)
	back, err := MappingFromMap(OrderSchema, raw)
	if err != nil {
		t.Fatal(err)
	}
	if h, _ := back.Header(internal.FieldQuantity); h != "Qty" {
		t.Fatalf("quantity header=%q", h)
	}

	if _, err := MappingFromMap(OrderSchema, map[string]string{"A": "dosage", "B": "dosage"}); !errors.Is(err, ErrFieldClaimed) {
		t.Fatalf("err=%v", err)
	}
	if _, err := MappingFromMap(PortfolioSchema, map[string]string{"A": "sip"}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err=%v", err)
	}
}

func TestApplyOverrides(t *testing.T) {
	m := AutoMatch(OrderSchema, []string{"Medicine Name", "Form", "Qty", "Notes"})

	if err := m.ApplyOverrides([]string{"Form=units", "Notes="}); err != nil {
		t.Fatal(err)
	}
	if f, _ := m.Field("Form"); f != internal.FieldUnits {
		t.Fatalf("Form=%s", f)
	}
	if _, ok := m.Field("Notes"); ok {
		t.Fatal("Notes should be unmapped")
	}
	if _, ok := m.Header(internal.FieldPresentation); ok {
		t.Fatal("presentation should be free")
	}

	// an override takes the field from its previous column
	if err := m.ApplyOverrides([]string{"Qty=medicineName"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Field("Medicine Name"); ok {
		t.Fatal("Medicine Name should have lost its field")
	}

	before := m.Map()
	for _, bad := range [][]string{
		{"Medicine Name=presentation", "Form=presentation"},
		{"Form=bogus"},
		{"no equals sign"},
		{"=dosage"},
	} {
		if err := m.ApplyOverrides(bad); err == nil {
			t.Fatalf("overrides %q should fail", bad)
		}
	}
	if len(m.Map()) != len(before) {
		t.Fatalf("failed overrides changed the mapping: %v", m.Map())
	}
}

func TestSchemaByName(t *testing.T) {
	if s, err := SchemaByName(" Portfolio "); err != nil || s.Name != "portfolio" {
		t.Fatalf("schema=%v err=%v", s.Name, err)
	}
	if _, err := SchemaByName("invoice"); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("err=%v", err)
	}
}
