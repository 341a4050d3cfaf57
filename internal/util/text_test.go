package util

import (
	"reflect"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Amoxicillin-Clavulanate  (Augmentin) "); got != "AMOXICILLIN CLAVULANATE AUGMENTIN" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeName("Paracétamol 500µg"); got != "PARACETAMOL 500MCG" {
		t.Fatalf("got %q", got)
	}
}

func TestTokenizeDropsShortParts(t *testing.T) {
	got := Tokenize("Vitamin B 12 injection")
	want := []string{"VITAMIN", "12", "INJECTION"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("IBUPROFEN", "IBUPROFEN") != 1 {
		t.Fatal("identical strings should score 1")
	}
	if DiceCoefficient("", "X") != 0 {
		t.Fatal("empty should score 0")
	}
	if s := DiceCoefficient("AMOXICILLIN", "AMOXYCILLIN"); s < 0.7 || s >= 1 {
		t.Fatalf("score=%v", s)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Ghana, Nigeria,, Kenya ")
	if !reflect.DeepEqual(got, []string{"Ghana", "Nigeria", "Kenya"}) {
		t.Fatalf("got %v", got)
	}
}

func TestCanonicalCountries(t *testing.T) {
	known, unknown := CanonicalCountries("ghana; Côte d'Ivoire, Ghana, Atlantis, south  africa")
	if !reflect.DeepEqual(known, []string{"Ghana", "Ivory Coast", "South Africa"}) {
		t.Fatalf("known=%v", known)
	}
	if !reflect.DeepEqual(unknown, []string{"Atlantis"}) {
		t.Fatalf("unknown=%v", unknown)
	}
}

func TestParseSIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"N/A", "does_not_apply", true},
		{"Issued", "has_been_issued", true},
		{"is_being_processed", "is_being_processed", true},
		{"to be requested", "to_be_requested", true},
		{"", "", false},
		{"maybe", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseSIP(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseSIP(%q)=%q,%v", tc.in, got, ok)
		}
	}
	if SIPLabel("to_be_requested") != "To Request" {
		t.Fatal("label mismatch")
	}
}
