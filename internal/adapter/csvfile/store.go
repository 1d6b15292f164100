package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

// StoreFile is the canonical event store on disk.
type StoreFile struct {
	path string
}

// NewStoreFile creates a StoreFile for the file at path.
func NewStoreFile(path string) *StoreFile {
	return &StoreFile{path: path}
}

// Path returns the store location.
func (s *StoreFile) Path() string { return s.path }

// LoadStore reads the store. It returns nil, nil when the file does not exist
// and an empty store when the file has no header. Malformed files are errors.
func (s *StoreFile) LoadStore(ctx context.Context) (*domain.EventStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header, rows, err := readTable(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	store := &domain.EventStore{
		Columns: header,
		Events:  make([]domain.ExtractedEvent, 0, len(rows)),
	}
	for _, fields := range rows {
		store.Events = append(store.Events, domain.EventFromFields(fields))
	}
	return store, nil
}

// SaveStore replaces the store atomically: readers see either the old file or
// the complete new one.
func (s *StoreFile) SaveStore(ctx context.Context, store domain.EventStore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after a successful replace

	columns := store.Columns
	if len(columns) == 0 {
		columns = domain.StoreColumns(store.Events)
	}
	if err := writeTable(pending, columns, rowsOf(store.Events)); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
