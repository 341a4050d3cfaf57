package pipeline

import (
	"path/filepath"
	"strings"
)

type DetectResult struct {
	IsBulkUpload bool
	Score        float64
	Reason       string
}

var detectKeywords = []string{"bulk", "order", "upload", "quantity", "qty", "procure", "request", "tender", "rfq"}

var spreadsheetExts = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true, ".csv": true, ".tsv": true}

// DetectBulkUpload scores whether an e-mail carries a bulk order. A
// spreadsheet attachment is required; keywords and tables add confidence.
func DetectBulkUpload(subject, text, html string, attachmentNames []string) DetectResult {
	hasSheet := false
	for _, name := range attachmentNames {
		if spreadsheetExts[strings.ToLower(filepath.Ext(name))] {
			hasSheet = true
			break
		}
	}
	html = strings.ToLower(html)
	hasTable := strings.Contains(html, "<table")
	if !hasSheet && !hasTable {
		return DetectResult{Reason: "no_spreadsheet"}
	}

	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	if hasSheet {
		score += 0.45
	} else {
		score += 0.25
	}
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}
	if score > 1 {
		score = 1
	}

	ok := score >= 0.45
	reason := "rules_negative"
	if ok {
		reason = "rules_positive"
	}
	return DetectResult{IsBulkUpload: ok, Score: score, Reason: reason}
}
