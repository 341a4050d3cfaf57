package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"axmed/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "axmed.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMedicinesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	meds := []internal.MedicineRecord{
		{ID: 1, Name: "Amoxicillin", Category: "Antibiotic", Presentations: []string{"Tablet", "Suspension"}, Dosages: []string{"500mg"}},
		{ID: 2, Name: "Artemether/Lumefantrine", Category: "Antimalarial", SIPRequired: true},
	}
	if err := db.UpsertMedicines(meds); err != nil {
		t.Fatal(err)
	}
	meds[0].Category = "Antibiotics"
	if err := db.UpsertMedicines(meds[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListMedicines()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].Category != "Antibiotics" || len(got[0].Presentations) != 2 {
		t.Fatalf("medicine=%+v", got[0])
	}
	if !got[1].SIPRequired || got[1].Presentations == nil {
		t.Fatalf("medicine=%+v", got[1])
	}
}

func TestUploadRowsAndExport(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertMedicines([]internal.MedicineRecord{{ID: 7, Name: "Paracetamol", Category: "Analgesic"}}); err != nil {
		t.Fatal(err)
	}

	upload := internal.UploadRecord{
		ID: "u-1", Owner: "buyer", Schema: "order", Source: "file", FileName: "order.csv",
		Headers: []string{"Medicine Name", "Qty"}, Mapping: map[string]string{"Medicine Name": "medicineName", "Qty": "quantity"},
		RowCount: 2, ValidCount: 2, Status: "applied", CreatedAt: "2026-01-02T10:00:00Z",
	}
	rows := []internal.UploadRow{
		{LineNo: 1, Row: internal.NormalizedRow{MedicineName: "Unknown thing", Quantity: "3"}, Match: internal.MatchResult{Status: internal.MatchNotFound, Reason: internal.ReasonNone}},
		{LineNo: 2, Row: internal.NormalizedRow{MedicineName: "Paracetamol", Quantity: "1000"}, Match: internal.MatchResult{
			Status: internal.MatchOK, Confidence: 0.95, Reason: internal.ReasonName,
			Medicine:   &internal.MatchMedicine{ID: 7, Name: "Paracetamol"},
			Candidates: []internal.MatchCandidate{{ID: 7, Name: "Paracetamol", Score: 0.95}, {ID: 8, Name: "Paracetamol Syrup", Score: 0.7}},
		}},
	}
	if err := db.InsertUpload(upload, rows); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetUpload("u-1")
	if err != nil || got == nil {
		t.Fatalf("upload=%v err=%v", got, err)
	}
	if got.Mapping["Qty"] != "quantity" || len(got.Headers) != 2 {
		t.Fatalf("upload=%+v", got)
	}
	latest, err := db.LatestUpload("buyer")
	if err != nil || latest == nil || latest.ID != "u-1" {
		t.Fatalf("latest=%v err=%v", latest, err)
	}

	stored, err := db.ListUploadRows("u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[1].Match.Medicine == nil || stored[1].Match.Medicine.Category != "Analgesic" {
		t.Fatalf("rows=%+v", stored)
	}

	export, err := db.GetExportRows("u-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(export) != 2 {
		t.Fatalf("len=%d", len(export))
	}
	if export[0].MatchStatus != "OK" || export[0].MedicineName == nil || *export[0].MedicineName != "Paracetamol" {
		t.Fatalf("first export row=%+v", export[0])
	}
	if export[0].Candidate2Name == nil || *export[0].Candidate2Name != "Paracetamol Syrup" {
		t.Fatalf("candidate2=%v", export[0].Candidate2Name)
	}
	if export[1].MedicineID != nil {
		t.Fatalf("not found row has medicine %v", *export[1].MedicineID)
	}
}

func TestDraftLifecycle(t *testing.T) {
	db := openTestDB(t)
	draft := internal.BulkDraft{Owner: "buyer", Schema: "order", Rows: []internal.NormalizedRow{{MedicineName: "Ibuprofen", Quantity: "20"}}, SavedAt: "2026-01-02T10:00:00Z"}
	if err := db.SaveDraft(draft); err != nil {
		t.Fatal(err)
	}
	draft.Rows = append(draft.Rows, internal.NormalizedRow{MedicineName: "Zinc", Quantity: "5"})
	if err := db.SaveDraft(draft); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetDraft("buyer", "order")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got.Rows) != 2 {
		t.Fatalf("draft=%+v", got)
	}
	if other, _ := db.GetDraft("buyer", "portfolio"); other != nil {
		t.Fatalf("unexpected portfolio draft %+v", other)
	}
	if err := db.DeleteDraft("buyer", "order"); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetDraft("buyer", "order"); got != nil {
		t.Fatal("draft should be gone")
	}
}

func TestSubmitOrderRejectsSecondPending(t *testing.T) {
	db := openTestDB(t)
	_ = db.SaveDraft(internal.BulkDraft{Owner: "buyer", Schema: "order", Rows: []internal.NormalizedRow{{MedicineName: "Ibuprofen"}}, SavedAt: "t"})

	items := []internal.OrderItem{{ID: "i-1", Owner: "buyer", MedicineName: "Ibuprofen", Presentation: "Tablet", SIP: "does_not_apply", Quantity: 20, Units: "tablets", CreatedAt: "2026-01-02T10:00:00Z"}}
	pending := internal.PendingUpload{Owner: "buyer", ItemCount: 1, SubmittedAt: "2026-01-02T10:00:00Z"}
	if err := db.SubmitOrder(pending, items); err != nil {
		t.Fatal(err)
	}
	if d, _ := db.GetDraft("buyer", "order"); d != nil {
		t.Fatal("draft should be cleared on submit")
	}

	items[0].ID = "i-2"
	if err := db.SubmitOrder(pending, items); !errors.Is(err, ErrPendingExists) {
		t.Fatalf("err=%v", err)
	}
	stored, err := db.ListOrderItems("buyer")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].PackagingNotes != nil {
		t.Fatalf("items=%+v", stored)
	}

	ok, err := db.DeletePendingUpload("buyer")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if p, _ := db.GetPendingUpload("buyer"); p != nil {
		t.Fatalf("pending=%+v", p)
	}
}

func TestPortfolioItems(t *testing.T) {
	db := openTestDB(t)
	items := []internal.PortfolioItem{{ID: "p-1", MedicineName: "Amoxicillin", Presentation: "Tablet", Dosage: "500mg", Countries: []string{"Ghana", "Kenya"}, CreatedAt: "2026-01-02T10:00:00Z"}}
	if err := db.SubmitPortfolio("supplier", items); err != nil {
		t.Fatal(err)
	}
	got, err := db.ListPortfolioItems("supplier")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Owner != "supplier" || len(got[0].Countries) != 2 {
		t.Fatalf("items=%+v", got)
	}
}

func TestListEmailsByStatusFiltersProviderBeforeLimit(t *testing.T) {
	db := openTestDB(t)
	for i, provider := range []string{"gmail", "gmail", "gmail", "imap"} {
		id := fmt.Sprintf("m-%d", i)
		if _, err := db.UpsertEmail(provider, id, "s", "x@y.example", fmt.Sprintf("2026-01-02T10:0%d:00Z", i), id, "/tmp/"+id+".eml", "fetched"); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.ListEmailsByStatus("fetched", "imap", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].MessageID != "m-3" {
		t.Fatalf("got=%+v", got)
	}
	all, _ := db.ListEmailsByStatus("fetched", "", 2)
	if len(all) != 2 || all[0].MessageID != "m-0" {
		t.Fatalf("all=%+v", all)
	}
}

func TestEmailsAndRuns(t *testing.T) {
	db := openTestDB(t)
	row, err := db.UpsertEmail("imap", "m-1", "Bulk order", "buyer@clinic.example", "2026-01-02T10:00:00Z", "abc", "/tmp/m-1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	pending, err := db.ListEmailsByStatus("fetched", "", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%v err=%v", pending, err)
	}
	if err := db.LinkEmailUpload(row.ID, "u-9"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateEmailStatus(row.ID, "processed"); err != nil {
		t.Fatal(err)
	}
	got, err := db.MustEmailByProviderMessageID("imap", "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "processed" || got.UploadID != "u-9" {
		t.Fatalf("email=%+v", got)
	}
	if _, err := db.MustEmailByProviderMessageID("imap", "nope"); err == nil {
		t.Fatal("expected not found")
	}

	if err := db.InsertRun("trace", "u-9", row.ID, map[string]float64{"totalMs": 3}, map[string]int{"rows": 2}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun("trace2", "", 0, nil, nil); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.CountRuns(); n != 2 {
		t.Fatalf("runs=%d", n)
	}
}
