package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	unitPattern    = regexp.MustCompile(`(?i)\b(tablets?|tabs?|capsules?|caps?|vials?|ampoules?|amps?|bottles?|packs?|boxes|box|sachets?|tubes?|units?|pcs|pc)\b`)
	numberPattern  = regexp.MustCompile(`(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	thousandsDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	thousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

type ParsedQty struct {
	Qty    *decimal.Decimal
	Unit   *string
	QtyRaw *string
}

// ParseQty pulls the first number and an optional pack unit out of a quantity
// cell such as "1,000", "1 000 tablets" or "2.5".
func ParseQty(input string) ParsedQty {
	line := strings.TrimSpace(strings.ReplaceAll(input, "\u00A0", " "))

	var out ParsedQty
	if m := numberPattern.FindStringSubmatch(line); len(m) > 1 {
		raw := strings.TrimSpace(m[1])
		out.QtyRaw = StringPtr(raw)
		if d, err := decimal.NewFromString(normalizeNumericToken(raw)); err == nil {
			out.Qty = &d
		}
	}
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		u := normalizeUnit(um[1])
		out.Unit = &u
	}
	return out
}

// QtyInt returns the whole-unit quantity of a cell, 0 when nothing parses.
// Fractions are truncated.
func QtyInt(input string) int {
	parsed := ParseQty(input)
	if parsed.Qty == nil {
		return 0
	}
	return int(parsed.Qty.IntPart())
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "tablet", "tablets", "tab", "tabs":
		return "tablets"
	case "capsule", "capsules", "cap", "caps":
		return "capsules"
	case "vial", "vials":
		return "vials"
	case "ampoule", "ampoules", "amp", "amps":
		return "ampoules"
	case "bottle", "bottles":
		return "bottles"
	case "pack", "packs":
		return "packs"
	case "box", "boxes":
		return "boxes"
	case "sachet", "sachets":
		return "sachets"
	case "tube", "tubes":
		return "tubes"
	case "unit", "units", "pc", "pcs":
		return "units"
	default:
		return u
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if thousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if thousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
