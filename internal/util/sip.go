package util

import (
	"strings"

	"axmed/internal"
)

var sipLabels = map[string]string{
	internal.SIPDoesNotApply:   "N/A",
	internal.SIPHasBeenIssued:  "Issued",
	internal.SIPBeingProcessed: "Processing",
	internal.SIPToBeRequested:  "To Request",
}

// SIPLabel returns the display label of a SIP status, or the value itself when
// it is not a known status.
func SIPLabel(status string) string {
	if label, ok := sipLabels[status]; ok {
		return label
	}
	return status
}

// ParseSIP maps a label or status value ("Issued", "to_be_requested", "n/a")
// back to a status. ok is false when the text is not recognised.
func ParseSIP(input string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(input))
	if v == "" {
		return "", false
	}
	for status, label := range sipLabels {
		if v == status || v == strings.ToLower(label) {
			return status, true
		}
	}
	switch strings.NewReplacer("-", " ", "_", " ").Replace(v) {
	case "na", "none", "not applicable", "does not apply":
		return internal.SIPDoesNotApply, true
	case "is being processed", "in progress", "pending":
		return internal.SIPBeingProcessed, true
	case "to be requested", "required", "request":
		return internal.SIPToBeRequested, true
	case "has been issued", "yes":
		return internal.SIPHasBeenIssued, true
	}
	return "", false
}
