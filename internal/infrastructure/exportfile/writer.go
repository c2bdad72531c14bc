// Package exportfile writes the weekly order report as a tab separated file.
package exportfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
)

// Writer stores reports below Dir
type Writer struct {
	dir string
}

// NewWriter creates a writer for dir. An empty dir means "exports".
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "exports"
	}
	return &Writer{dir: dir}
}

// DefaultName is the file name of the report for w
func DefaultName(w salesexport.Window) string {
	return fmt.Sprintf("weclapp_orders_%s_%s.csv", w.Start.Format("20060102"), w.End.Format("20060102"))
}

// Write stores rows at path, or at Dir/DefaultName when path is empty, and
// returns where the file went. The file is replaced atomically.
func (wr *Writer) Write(ctx context.Context, w salesexport.Window, rows []salesexport.Row, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(wr.dir, DefaultName(w))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("exportfile: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("exportfile: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	out := csv.NewWriter(tmp)
	out.Comma = '\t'
	if err := out.Write(salesexport.Header); err != nil {
		tmp.Close()
		return "", fmt.Errorf("exportfile: write header: %w", err)
	}
	for _, row := range rows {
		if err := out.Write(row.Record()); err != nil {
			tmp.Close()
			return "", fmt.Errorf("exportfile: write row %s: %w", row.OrderNumber, err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("exportfile: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("exportfile: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("exportfile: move into place: %w", err)
	}
	return path, nil
}
