package export

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/utils"
)

// CSVFile writes the download to a local file.
type CSVFile struct {
	Path string
}

var _ Sink = CSVFile{}

// Write replaces the file atomically.
func (f CSVFile) Write(_ context.Context, t *dataset.Table) error {
	return WriteCSVFile(f.Path, t)
}

// WriteCSVFile renders t as CSV and writes it to path via a temp file.
func WriteCSVFile(path string, t *dataset.Table) error {
	b, err := dataset.CSVBytes(t)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
