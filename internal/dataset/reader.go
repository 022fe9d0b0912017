package dataset

import (
	"errors"
	"os"
	"path/filepath"
)

// Options controls how a source file is read into a Table.
type Options struct {
	// Delimiter for CSV. If 0, it is chosen from the file extension.
	Delimiter rune
	// NAValues lists the exact cell texts that read as absent.
	NAValues []string
	// XLSX sheet selection. SheetName wins over SheetIndex (1-based).
	SheetName  string
	SheetIndex int
}

// DefaultNAValues are the cell texts read as absent unless configured otherwise.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// DefaultOptions returns options suitable for the clinical-trials export.
func DefaultOptions() Options {
	return Options{
		NAValues:   append([]string(nil), DefaultNAValues...),
		SheetIndex: 1,
	}
}

// Reader reads one source format into a Table.
type Reader interface {
	CanRead(path string) bool
	Read(path string, opt Options) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(xlsxReader{})
	Register(csvReader{})
}

// Load reads path with the first registered reader accepting it. Files with an
// unknown extension are read as comma-separated text.
func Load(path string, opt Options) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &IOError{Path: path, Err: errors.New("is a directory")}
	}
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt)
		}
	}
	return csvReader{}.Read(path, opt)
}

// naSet builds the lookup used to classify absent cells.
func naSet(values []string) map[string]bool {
	if values == nil {
		values = DefaultNAValues
	}
	out := make(map[string]bool, len(values)+1)
	out[""] = true
	for _, v := range values {
		out[v] = true
	}
	return out
}

// toField classifies raw by exact match against the NA tokens. Present text
// is kept verbatim, surrounding whitespace included.
func toField(raw string, na map[string]bool) Field {
	if na[raw] {
		return Absent()
	}
	return Present(raw)
}

func baseName(path string) string { return filepath.Base(path) }
