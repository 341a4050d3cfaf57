package reader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func (r *Reader) readCSV(ctx context.Context, name string, blob []byte) (Table, error) {
	text, encoding, err := decodeText(blob)
	if err != nil {
		return Table{}, err
	}
	if bytes.IndexByte(text, 0) >= 0 {
		return Table{}, errors.New("binary content is not delimited text")
	}

	delim := sniffDelimiter(text)
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		delim = '\t'
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var skipped []Warning
	recordNo := 0
	next := func() ([]string, bool, error) {
		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}
			recordNo++
			if err != nil {
				var pe *csv.ParseError
				if recordNo == 1 || !errors.As(err, &pe) {
					return nil, false, err
				}
				skipped = append(skipped, Warning{Row: recordNo, Message: fmt.Sprintf("parse error: %v", err)})
				continue
			}
			return record, true, nil
		}
	}

	table, err := buildTable(ctx, next, r.MaxRows)
	if err != nil {
		return Table{}, err
	}
	table.Format = FormatCSV
	table.Encoding = encoding
	table.Warnings = append(table.Warnings, skipped...)
	return table, nil
}

// decodeText converts blob to UTF-8. A BOM selects UTF-8 or UTF-16; input
// without a BOM that is not valid UTF-8 is read as Windows-1252.
func decodeText(blob []byte) ([]byte, string, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	encoding := "utf-8"
	switch {
	case bytes.HasPrefix(blob, []byte{0xFF, 0xFE}):
		encoding = "utf-16le"
	case bytes.HasPrefix(blob, []byte{0xFE, 0xFF}):
		encoding = "utf-16be"
	case bytes.HasPrefix(blob, []byte{0xEF, 0xBB, 0xBF}):
		encoding = "utf-8-bom"
	case !utf8.Valid(blob):
		fallback = charmap.Windows1252.NewDecoder()
		encoding = "windows-1252"
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), blob)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", encoding, err)
	}
	return out, encoding, nil
}

// sniffDelimiter counts candidate separators on the first line with content,
// the one read as the header, ignoring anything inside double quotes. Comma
// wins ties.
func sniffDelimiter(text []byte) rune {
	line := firstContentLine(text)
	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(line) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// firstContentLine skips lines holding only whitespace, a BOM or separators.
func firstContentLine(text []byte) []byte {
	for len(text) > 0 {
		line := text
		if i := bytes.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = nil
		}
		if strings.Trim(string(line), " \t\r,;\uFEFF") != "" {
			return line
		}
	}
	return nil
}
