package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

// ErrSourceNotFound is returned when the post file does not exist.
var ErrSourceNotFound = errors.New("post file not found")

// PostReader loads the raw posts of a batch from the post file.
type PostReader struct {
	path string
}

// NewPostReader creates a PostReader for the file at path.
func NewPostReader(path string) *PostReader {
	return &PostReader{path: path}
}

// LoadPosts reads every post in file order. A missing file yields
// ErrSourceNotFound; an empty file yields no posts.
func (r *PostReader) LoadPosts(ctx context.Context) ([]domain.RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, rows, err := readTable(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, r.path)
	}
	if err != nil {
		return nil, err
	}

	posts := make([]domain.RawPost, 0, len(rows))
	for _, fields := range rows {
		posts = append(posts, domain.PostFromFields(fields))
	}
	return posts, nil
}

// PostWriter writes the post file one row at a time, so a fetch that fails
// midway still leaves the rows fetched so far.
type PostWriter struct {
	f *os.File
	w *csv.Writer
}

// CreatePostFile truncates (or creates) the post file and writes the header.
func CreatePostFile(path string) (*PostWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create post file: %w", err)
	}

	pw := &PostWriter{f: f, w: csv.NewWriter(f)}
	if err := pw.write(domain.PostColumns); err != nil {
		f.Close()
		return nil, fmt.Errorf("write post header: %w", err)
	}
	return pw, nil
}

// Append writes one post row in PostColumns order and flushes it to disk.
func (pw *PostWriter) Append(fields map[string]string) error {
	record := make([]string, len(domain.PostColumns))
	for i, c := range domain.PostColumns {
		record[i] = fields[c]
	}
	return pw.write(record)
}

func (pw *PostWriter) write(record []string) error {
	if err := pw.w.Write(record); err != nil {
		return err
	}
	pw.w.Flush()
	return pw.w.Error()
}

// Close closes the underlying file.
func (pw *PostWriter) Close() error {
	return pw.f.Close()
}
