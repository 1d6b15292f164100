package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

// SnapshotWriter writes the events extracted by the latest run. Each run
// replaces the previous snapshot.
type SnapshotWriter struct {
	path string
}

// NewSnapshotWriter creates a SnapshotWriter for the file at path.
func NewSnapshotWriter(path string) *SnapshotWriter {
	return &SnapshotWriter{path: path}
}

// WriteSnapshot deletes any previous snapshot and writes events to a fresh file.
func (s *SnapshotWriter) WriteSnapshot(ctx context.Context, events []domain.ExtractedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove old snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := writeTable(f, domain.StoreColumns(events), rowsOf(events)); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

func rowsOf(events []domain.ExtractedEvent) []map[string]string {
	rows := make([]map[string]string, len(events))
	for i, e := range events {
		rows[i] = e.Row()
	}
	return rows
}
