package reader

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var pdfCellSplit = regexp.MustCompile(`\t|\s*\|\s*|\s*;\s*|\s{2,}`)

// readPDF reads the text layer page by page. Each line is one row and cells
// are separated by tabs, pipes, semicolons or runs of spaces.
func (r *Reader) readPDF(ctx context.Context, blob []byte) (table Table, err error) {
	defer func() {
		if p := recover(); p != nil {
			table, err = Table{}, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return Table{}, err
	}

	var grid [][]string
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			grid = append(grid, pdfCellSplit.Split(line, -1))
		}
	}

	table, err = buildTable(ctx, sliceSource(grid), r.MaxRows)
	if err != nil {
		return Table{}, err
	}
	table.Format = FormatPDF
	return table, nil
}
