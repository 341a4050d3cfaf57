package gmail

import (
	"encoding/base64"
	"testing"
	"time"
)

const raw = "From: Buyer <buyer@clinic.example>\r\n" +
	"Subject: Bulk order\r\n" +
	"Date: Mon, 05 Jan 2026 09:30:00 +0100\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n"

func TestMessageFromRaw(t *testing.T) {
	msg, err := messageFromRaw("18c0", []byte(raw), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != "18c0" || msg.Subject != "Bulk order" || msg.ReceivedAt != "2026-01-05T08:30:00Z" {
		t.Fatalf("msg=%+v", msg)
	}
	if msg.From != "Buyer <buyer@clinic.example>" {
		t.Fatalf("from=%q", msg.From)
	}
}

func TestMessageFromRawWithoutDate(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	msg, err := messageFromRaw("x", []byte("Message-ID: <m1@clinic>\r\nSubject: hi\r\n\r\nbody\r\n"), now)
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID != "<m1@clinic>" || msg.ReceivedAt != "2026-02-01T12:00:00Z" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestDecodeBase64URL(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString([]byte("a?b>")))
		if err != nil || string(got) != "a?b>" {
			t.Fatalf("got=%q err=%v", got, err)
		}
	}
	if _, err := decodeBase64URL("***"); err == nil {
		t.Fatal("expected error")
	}
}
