package reader

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
)

// attachmentRank orders the attachment types a sheet is taken from; lower
// wins. Legacy .xls comes last so its ParseError only surfaces when nothing
// else is attached.
var attachmentRank = map[string]int{
	".xlsx": 1, ".xlsm": 1,
	".csv": 2, ".tsv": 2,
	".xls": 3,
}

// readEML reads the first spreadsheet attachment of a message, or the first
// HTML table of its body when there is none.
func (r *Reader) readEML(ctx context.Context, blob []byte) (Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(blob))
	if err != nil {
		return Table{}, err
	}

	if att := SpreadsheetAttachment(env); att != nil {
		table, err := r.Read(ctx, att.FileName, att.Content)
		if err != nil {
			return Table{}, err
		}
		table.Attachment = att.FileName
		return table, nil
	}

	table := Table{Format: FormatEML}
	if env.HTML != "" {
		doc, err := goqueryDoc(env.HTML)
		if err != nil {
			return Table{}, err
		}
		table, err = buildTable(ctx, sliceSource(firstHTMLTable(doc)), r.MaxRows)
		if err != nil {
			return Table{}, err
		}
		table.Format = FormatEML
	}
	return table, nil
}

// SpreadsheetAttachment returns the best spreadsheet or CSV attachment:
// workbooks before delimited text, first in message order within a type.
func SpreadsheetAttachment(env *enmime.Envelope) *enmime.Part {
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	var best *enmime.Part
	bestRank := 0
	for _, p := range parts {
		name := strings.TrimSpace(p.FileName)
		if name == "" || len(p.Content) == 0 {
			continue
		}
		rank, ok := attachmentRank[strings.ToLower(filepath.Ext(name))]
		if ok && (best == nil || rank < bestRank) {
			best, bestRank = p, rank
		}
	}
	return best
}
