package reader

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"axmed/internal/util"
)

// readHTML reads the first table that has a header row and at least one
// data row. A page without such a table yields an empty Table.
func (r *Reader) readHTML(ctx context.Context, blob []byte) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return Table{}, err
	}
	grid := firstHTMLTable(doc)
	table, err := buildTable(ctx, sliceSource(grid), r.MaxRows)
	if err != nil {
		return Table{}, err
	}
	table.Format = FormatHTML
	return table, nil
}

func firstHTMLTable(doc *goquery.Document) [][]string {
	var grid [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			grid = append(grid, cells)
		})
		return false
	})
	return grid
}

func goqueryDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
