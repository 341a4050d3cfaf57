package reader

import (
	"context"
	"fmt"
	"strings"

	"axmed/internal"
)

// rowSource yields raw cell rows one at a time. ok is false once exhausted.
type rowSource func() (cells []string, ok bool, err error)

func sliceSource(grid [][]string) rowSource {
	i := 0
	return func() ([]string, bool, error) {
		if i >= len(grid) {
			return nil, false, nil
		}
		i++
		return grid[i-1], true, nil
	}
}

// buildTable turns raw cell rows into a Table. The first row with any
// non-blank cell is the header row.
func buildTable(ctx context.Context, next rowSource, maxRows int) (Table, error) {
	var t Table
	rowNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		cells, ok, err := next()
		if err != nil {
			return Table{}, err
		}
		if !ok {
			return t, nil
		}
		rowNo++
		cells = trimCells(cells)

		if t.Headers == nil {
			if allBlank(cells) {
				continue
			}
			t.Headers, t.Warnings = headerRow(cells, rowNo)
			continue
		}

		if allBlank(cells) {
			continue
		}
		if maxRows > 0 && len(t.Rows) >= maxRows {
			t.Warnings = append(t.Warnings, Warning{Row: rowNo, Message: fmt.Sprintf("row limit %d reached; remaining rows ignored", maxRows)})
			return t, nil
		}
		t.Rows = append(t.Rows, t.rawRow(cells, rowNo))
	}
}

func headerRow(cells []string, rowNo int) ([]string, []Warning) {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	headers := make([]string, 0, end)
	var warnings []Warning
	seen := map[string]int{}
	for i, h := range cells[:end] {
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
			warnings = append(warnings, Warning{Row: rowNo, Message: fmt.Sprintf("column %d has no header; named %q", i+1, h)})
		}
		if first, dup := seen[h]; dup {
			warnings = append(warnings, Warning{Row: rowNo, Message: fmt.Sprintf("header %q repeats column %d; column %d wins", h, first+1, i+1)})
		} else {
			seen[h] = i
		}
		headers = append(headers, h)
	}
	return headers, warnings
}

func (t *Table) rawRow(cells []string, rowNo int) internal.RawRow {
	row := make(internal.RawRow, len(t.Headers))
	for i, h := range t.Headers {
		if i < len(cells) {
			row[h] = cells[i]
		} else if _, exists := row[h]; !exists {
			row[h] = ""
		}
	}
	if len(cells) > len(t.Headers) && !allBlank(cells[len(t.Headers):]) {
		t.Warnings = append(t.Warnings, Warning{Row: rowNo, Message: fmt.Sprintf("row has %d columns, expected %d; extra cells dropped", len(cells), len(t.Headers))})
	}
	return row
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\uFEFF"))
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
