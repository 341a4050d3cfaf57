package pipeline

import (
	"context"
	"testing"
)

const orderEML = "From: Ward Pharmacy <Orders@Clinic.example>\r\n" +
	"To: bulk@axmed.example\r\n" +
	"Subject: Bulk order\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please find our order attached.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/csv; name=\"order.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"order.csv\"\r\n" +
	"\r\n" +
	"Medicine Name,Qty\r\n" +
	"Paracetamol,100\r\n" +
	"Zinc,40\r\n" +
	"--XYZ--\r\n"

const chatterEML = "From: someone@example.com\r\n" +
	"Subject: Lunch?\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Are you free on Friday?\r\n"

func TestProcessEmailCreatesDraftForSender(t *testing.T) {
	db := openTestDB(t)
	svc := NewProcessingService(db, testConfig())

	path := writeFile(t, "m-1.eml", orderEML)
	if _, err := db.UpsertEmail("imap", "m-1", "Bulk order", "Orders@Clinic.example", "2026-01-02T10:00:00Z", "h1", path, "fetched"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "processed" || res.Rows != 2 || res.UploadID == "" {
		t.Fatalf("res=%+v", res)
	}

	email, _ := db.MustEmailByProviderMessageID("imap", "m-1")
	if email.Status != "processed" || email.UploadID != res.UploadID {
		t.Fatalf("email=%+v", email)
	}
	upload, _ := db.GetUpload(res.UploadID)
	if upload == nil || upload.Owner != "orders@clinic.example" || upload.FileName != "order.csv" || upload.Source != "email" {
		t.Fatalf("upload=%+v", upload)
	}
	draft, _ := db.GetDraft("orders@clinic.example", OrderSchema.Name)
	if draft == nil || len(draft.Rows) != 2 {
		t.Fatalf("draft=%+v", draft)
	}
}

func TestProcessPendingBatchIgnoresOtherProviders(t *testing.T) {
	db := openTestDB(t)
	svc := NewProcessingService(db, testConfig())

	for _, id := range []string{"g-1", "g-2", "g-3"} {
		if _, err := db.UpsertEmail("gmail", id, "Bulk order", "x@y.example", "2026-01-01T09:00:00Z", id, writeFile(t, id+".eml", orderEML), "fetched"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.UpsertEmail("imap", "m-1", "Bulk order", "x@y.example", "2026-01-02T09:00:00Z", "h", writeFile(t, "m-1.eml", orderEML), "fetched"); err != nil {
		t.Fatal(err)
	}

	results, err := svc.ProcessPending(context.Background(), 1, "imap")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != "processed" {
		t.Fatalf("results=%+v", results)
	}
	email, _ := db.MustEmailByProviderMessageID("imap", "m-1")
	if email.Status != "processed" {
		t.Fatalf("status=%s", email.Status)
	}
}

func TestProcessPendingSkipsChatter(t *testing.T) {
	db := openTestDB(t)
	svc := NewProcessingService(db, testConfig())

	if _, err := db.UpsertEmail("imap", "m-1", "Lunch?", "someone@example.com", "2026-01-02T10:00:00Z", "h1", writeFile(t, "m-1.eml", chatterEML), "fetched"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertEmail("gmail", "g-1", "Bulk order", "x@y.example", "2026-01-02T11:00:00Z", "h2", writeFile(t, "g-1.eml", orderEML), "fetched"); err != nil {
		t.Fatal(err)
	}

	results, err := svc.ProcessPending(context.Background(), 10, "imap")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != "skipped" {
		t.Fatalf("results=%+v", results)
	}
	left, _ := db.ListEmailsByStatus("fetched", "", 10)
	if len(left) != 1 || left[0].Provider != "gmail" {
		t.Fatalf("left=%+v", left)
	}
}
