package pipeline

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"axmed/internal/reader"
)

func TestTemplateCSVRoundTrip(t *testing.T) {
	for _, schema := range []Schema{OrderSchema, PortfolioSchema} {
		blob, err := TemplateCSV(schema)
		if err != nil {
			t.Fatal(err)
		}
		table, err := reader.New(0).Read(context.Background(), schema.Template.FileName, blob)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(table.Headers, schema.Template.Headers) {
			t.Fatalf("%s headers=%q", schema.Name, table.Headers)
		}
		rows := ApplyMapping(schema, table.Rows, AutoMatch(schema, table.Headers))
		if len(rows) != 1 {
			t.Fatalf("%s rows=%d", schema.Name, len(rows))
		}
		if got := schema.Values(rows[0]); !reflect.DeepEqual(got, schema.Template.Example) {
			t.Fatalf("%s values=%q", schema.Name, got)
		}
		if !IsValidRow(schema, rows[0]) {
			t.Fatalf("%s example row should be valid", schema.Name)
		}
	}
}

func TestTemplateXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTemplateXLSX(OrderSchema, &buf); err != nil {
		t.Fatal(err)
	}
	table, err := reader.New(0).Read(context.Background(), "order_template.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if table.Sheet != "order" {
		t.Fatalf("sheet=%q", table.Sheet)
	}
	if !reflect.DeepEqual(table.Headers, OrderSchema.Template.Headers) || len(table.Rows) != 1 {
		t.Fatalf("table=%+v", table)
	}
	if table.Rows[0]["Medicine Name"] != "Amoxicillin" || table.Rows[0]["Notes"] != "" {
		t.Fatalf("row=%v", table.Rows[0])
	}
}
