package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

type csvReader struct{}

func (csvReader) CanRead(path string) bool {
	name := strings.ToLower(path)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvReader) Read(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	return ReadCSV(f, baseName(path), delim, opt.NAValues)
}

// ReadCSV parses delimited text from r. Every record must carry exactly as many
// fields as the header; anything else is a FormatError.
func ReadCSV(r io.Reader, name string, delim rune, naValues []string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = 0
	cr.LazyQuotes = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Path: name, Err: errors.New("empty file: no header row")}
		}
		return nil, csvFormatError(name, err)
	}
	cols, err := normalizeHeader(header)
	if err != nil {
		return nil, &FormatError{Path: name, Line: 1, Err: err}
	}

	na := naSet(naValues)
	t := &Table{Name: name, Columns: cols}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, csvFormatError(name, err)
		}
		line, _ := cr.FieldPos(0)
		row := make(Row, len(rec))
		for j, v := range rec {
			if !utf8.ValidString(v) {
				return nil, &FormatError{Path: name, Line: line, Err: fmt.Errorf("column %q: invalid UTF-8", cols[j])}
			}
			row[j] = toField(v, na)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func csvFormatError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Path: name, Line: pe.Line, Err: pe.Err}
	}
	return &FormatError{Path: name, Err: err}
}

// normalizeHeader trims names, strips a UTF-8 BOM, names blank columns
// "Unnamed: <i>" and rejects duplicates.
func normalizeHeader(header []string) ([]string, error) {
	if len(header) == 0 {
		return nil, errors.New("header has no columns")
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if !utf8.ValidString(h) {
			return nil, fmt.Errorf("header column %d: invalid UTF-8", i+1)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		cols[i] = h
	}
	return cols, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
