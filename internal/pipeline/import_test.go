package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"axmed/internal"
	"axmed/internal/config"
	"axmed/internal/reader"
	"axmed/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		DefaultOwner:         "buyer",
		MatchOKThreshold:     0.90,
		MatchReviewThreshold: 0.72,
		MatchGapThreshold:    0.08,
	}
}

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "axmed.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const orderCSV = "Medicine Name,Form,Qty,Notes\n" +
	"Paracetamol,Tablet,1000,\n" +
	",Capsule,5,missing name\n" +
	"Ibuprofen,,20 tablets,keep dry\n"

func TestInspectProposesMapping(t *testing.T) {
	svc := NewImportService(openTestDB(t), testConfig())
	insp, err := svc.Inspect(context.Background(), OrderSchema, writeFile(t, "order.csv", "Drug,Pack Type,Colour\nZinc,Tablet,red\n"))
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := insp.Mapping.Field("Drug"); f != internal.FieldMedicineName {
		t.Fatalf("Drug=%s", f)
	}
	if len(insp.Unmapped) != 1 || insp.Unmapped[0] != "Colour" {
		t.Fatalf("unmapped=%v", insp.Unmapped)
	}
}

func TestInspectEmptyAndBrokenFiles(t *testing.T) {
	svc := NewImportService(openTestDB(t), testConfig())
	ctx := context.Background()

	if _, err := svc.Inspect(ctx, OrderSchema, writeFile(t, "blank.csv", "\n , \n\n")); !errors.Is(err, ErrNoData) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Inspect(ctx, OrderSchema, writeFile(t, "zero.csv", "")); !errors.Is(err, reader.ErrParse) {
		t.Fatalf("err=%v", err)
	}
}

func TestApplySavesUploadAndDraft(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertMedicines([]internal.MedicineRecord{{ID: 1, Name: "Paracetamol"}, {ID: 2, Name: "Ibuprofen"}}); err != nil {
		t.Fatal(err)
	}
	svc := NewImportService(db, testConfig())

	res, err := svc.Apply(context.Background(), ApplyRequest{
		Owner:     "buyer",
		Schema:    OrderSchema,
		Path:      writeFile(t, "order.csv", orderCSV),
		SaveDraft: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 3 || res.Counts["valid"] != 2 || res.Counts["ok"] != 2 {
		t.Fatalf("rows=%d counts=%v", len(res.Rows), res.Counts)
	}
	if res.Rows[0].Row.SIP != internal.SIPDoesNotApply {
		t.Fatalf("sip=%q", res.Rows[0].Row.SIP)
	}
	if res.Draft == nil || len(res.Draft.Rows) != 2 || res.Upload.Status != "drafted" {
		t.Fatalf("draft=%+v upload=%+v", res.Draft, res.Upload)
	}

	stored, err := db.GetUpload(res.Upload.ID)
	if err != nil || stored == nil {
		t.Fatalf("upload=%v err=%v", stored, err)
	}
	if stored.Status != "drafted" || stored.Mapping["Qty"] != "quantity" {
		t.Fatalf("stored=%+v", stored)
	}
	if n, _ := db.CountRuns(); n != 1 {
		t.Fatalf("runs=%d", n)
	}
}

func TestApplyKeepsStatusWhenDraftMarkFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axmed.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`CREATE TRIGGER uploads_status_locked BEFORE UPDATE OF status ON uploads
BEGIN SELECT RAISE(ABORT, 'status locked'); END;`); err != nil {
		t.Fatal(err)
	}

	svc := NewImportService(db, testConfig())
	res, err := svc.Apply(context.Background(), ApplyRequest{Owner: "buyer", Schema: OrderSchema, Path: writeFile(t, "order.csv", orderCSV), SaveDraft: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Draft == nil {
		t.Fatal("draft should still be saved")
	}
	stored, _ := db.GetUpload(res.Upload.ID)
	if stored == nil || stored.Status != "applied" || res.Upload.Status != stored.Status {
		t.Fatalf("returned=%q stored=%+v", res.Upload.Status, stored)
	}
}

func TestApplyWithOverrides(t *testing.T) {
	svc := NewImportService(openTestDB(t), testConfig())
	res, err := svc.Apply(context.Background(), ApplyRequest{
		Owner:     "buyer",
		Schema:    OrderSchema,
		Path:      writeFile(t, "order.csv", orderCSV),
		Overrides: []string{"Notes=", "Form=units"},
	})
	if err != nil {
		t.Fatal(err)
	}
	row := res.Rows[0].Row
	if row.Units != "Tablet" || row.Presentation != "" || row.PackagingNotes != "" {
		t.Fatalf("row=%+v", row)
	}
	if res.Draft != nil {
		t.Fatal("draft saved without request")
	}

	_, err = svc.Apply(context.Background(), ApplyRequest{
		Owner:     "buyer",
		Schema:    OrderSchema,
		Path:      writeFile(t, "order.csv", orderCSV),
		Overrides: []string{"Qty=countries"},
	})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err=%v", err)
	}
}

func TestSubmitOrderDraft(t *testing.T) {
	db := openTestDB(t)
	svc := NewImportService(db, testConfig())
	ctx := context.Background()

	if _, err := svc.SubmitOrderDraft("buyer"); !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Apply(ctx, ApplyRequest{Owner: "buyer", Schema: OrderSchema, Path: writeFile(t, "order.csv", orderCSV), SaveDraft: true}); err != nil {
		t.Fatal(err)
	}

	sub, err := svc.SubmitOrderDraft("buyer")
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Items) != 2 || sub.Pending.ItemCount != 2 {
		t.Fatalf("sub=%+v", sub)
	}
	first, second := sub.Items[0], sub.Items[1]
	if first.Quantity != 1000 || first.Units != internal.DefaultUnits || first.SIP != internal.SIPDoesNotApply || first.PackagingNotes != nil {
		t.Fatalf("first=%+v", first)
	}
	if second.Presentation != internal.DefaultPresentation || second.Quantity != 20 || second.Units != "tablets" {
		t.Fatalf("second=%+v", second)
	}
	if second.PackagingNotes == nil || *second.PackagingNotes != "keep dry" {
		t.Fatalf("notes=%v", second.PackagingNotes)
	}

	// a new draft cannot be submitted while the first is pending
	if _, err := svc.Apply(ctx, ApplyRequest{Owner: "buyer", Schema: OrderSchema, Path: writeFile(t, "order.csv", orderCSV), SaveDraft: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitOrderDraft("buyer"); !errors.Is(err, ErrPendingUpload) {
		t.Fatalf("err=%v", err)
	}
	if p, _ := svc.Pending("buyer"); p == nil {
		t.Fatal("pending upload missing")
	}

	done, err := svc.CompletePending("buyer")
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if done, _ := svc.CompletePending("buyer"); done {
		t.Fatal("nothing should be pending")
	}
	if _, err := svc.SubmitOrderDraft("buyer"); err != nil {
		t.Fatal(err)
	}
	items, _ := db.ListOrderItems("buyer")
	if len(items) != 4 {
		t.Fatalf("items=%d", len(items))
	}
}

func TestSubmitOrderDraftParsesSIP(t *testing.T) {
	db := openTestDB(t)
	svc := NewImportService(db, testConfig())
	rows := []internal.NormalizedRow{
		{MedicineName: "Ketamine", Quantity: "10 vials", SIP: "Issued"},
		{MedicineName: "Morphine", Quantity: "5", SIP: "whatever"},
	}
	if _, err := svc.SaveDraft("buyer", OrderSchema, rows); err != nil {
		t.Fatal(err)
	}
	sub, err := svc.SubmitOrderDraft("buyer")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Items[0].SIP != internal.SIPHasBeenIssued || sub.Items[0].Units != "vials" {
		t.Fatalf("first=%+v", sub.Items[0])
	}
	if sub.Items[1].SIP != internal.SIPDoesNotApply {
		t.Fatalf("second=%+v", sub.Items[1])
	}
}

func TestSubmitPortfolioDraft(t *testing.T) {
	db := openTestDB(t)
	svc := NewImportService(db, testConfig())
	csv := "Product,Dose,Registered Markets\nAmoxicillin,500mg,\"Ghana, Atlantis\"\n,250mg,Kenya\n"
	res, err := svc.Apply(context.Background(), ApplyRequest{Owner: "supplier", Schema: PortfolioSchema, Path: writeFile(t, "portfolio.csv", csv), SaveDraft: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts["valid"] != 1 {
		t.Fatalf("counts=%v", res.Counts)
	}

	sub, err := svc.SubmitPortfolioDraft("supplier")
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Items) != 1 || len(sub.Items[0].Countries) != 1 || sub.Items[0].Countries[0] != "Ghana" {
		t.Fatalf("items=%+v", sub.Items)
	}
	if len(sub.Issues) != 1 || sub.Issues[0].Line != 1 {
		t.Fatalf("issues=%+v", sub.Issues)
	}
	stored, _ := db.ListPortfolioItems("supplier")
	if len(stored) != 1 {
		t.Fatalf("stored=%+v", stored)
	}
}
