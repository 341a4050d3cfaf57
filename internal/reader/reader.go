// Package reader decodes uploaded tabular files (CSV, XLSX, HTML tables,
// e-mails with spreadsheet attachments and PDF text) into a header row and
// string-keyed data rows.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"axmed/internal"
	"axmed/internal/logger"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatHTML Format = "html"
	FormatEML  Format = "eml"
	FormatPDF  Format = "pdf"
)

var ErrParse = errors.New("file could not be parsed")

type ParseError struct {
	Name   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Name, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Table is the decoded content of one file. Row numbers in warnings are
// 1-based and count the header row.
type Table struct {
	Name       string
	Format     Format
	Encoding   string
	Sheet      string
	Attachment string
	Headers    []string
	Rows       []internal.RawRow
	Warnings   []Warning
}

func (t Table) Empty() bool { return len(t.Headers) == 0 }

type Reader struct {
	MaxRows int
}

func New(maxRows int) *Reader {
	return &Reader{MaxRows: maxRows}
}

func (r *Reader) ReadFile(ctx context.Context, path string) (Table, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	return r.Read(ctx, filepath.Base(path), blob)
}

// Read decodes blob. name is only used to pick the format and for messages.
func (r *Reader) Read(ctx context.Context, name string, blob []byte) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}

	format := DetectFormat(name, blob)
	if len(blob) == 0 {
		return Table{}, &ParseError{Name: name, Format: format, Err: errors.New("empty file")}
	}

	var (
		table Table
		err   error
	)
	switch format {
	case FormatXLSX, FormatXLS:
		table, err = r.readXLSX(ctx, blob)
	case FormatHTML:
		table, err = r.readHTML(ctx, blob)
	case FormatEML:
		table, err = r.readEML(ctx, blob)
	case FormatPDF:
		table, err = r.readPDF(ctx, blob)
	default:
		table, err = r.readCSV(ctx, name, blob)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Table{}, ctxErr
		}
		var pe *ParseError
		if errors.As(err, &pe) {
			if pe.Name == "" {
				pe.Name = name
			}
			return Table{}, pe
		}
		return Table{}, &ParseError{Name: name, Format: format, Err: err}
	}

	table.Name = name
	if table.Format == "" {
		table.Format = format
	}
	logger.WithFields(logrus.Fields{
		"file":     name,
		"format":   table.Format,
		"headers":  len(table.Headers),
		"rows":     len(table.Rows),
		"warnings": len(table.Warnings),
	}).Debug("table read")
	return table, nil
}

// DetectFormat picks a decoder from the file extension and falls back to
// sniffing the first bytes.
func DetectFormat(name string, blob []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".html", ".htm":
		return FormatHTML
	case ".eml":
		return FormatEML
	case ".pdf":
		return FormatPDF
	}

	head := bytes.TrimLeft(blob[:min(len(blob), 512)], " \t\r\n\xef\xbb\xbf")
	switch {
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return FormatXLSX
	case bytes.HasPrefix(head, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		return FormatXLS
	case bytes.HasPrefix(head, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(head, []byte("<")):
		return FormatHTML
	case looksLikeMIME(head):
		return FormatEML
	}
	return FormatCSV
}

func looksLikeMIME(head []byte) bool {
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("mime-version:")) && bytes.Contains(lower, []byte("content-type:"))
}
