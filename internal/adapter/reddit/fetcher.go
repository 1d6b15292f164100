package reddit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/quake-post-etl/internal/adapter/csvfile"
)

type lister interface {
	Hot(ctx context.Context) ([]map[string]string, error)
}

// Fetcher refreshes the post file with the subreddit's current hot posts.
type Fetcher struct {
	client lister
	path   string
	logger *slog.Logger
}

// NewFetcher creates a Fetcher that writes the posts listed by client to path.
func NewFetcher(client *Client, path string, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, path: path, logger: logger}
}

// FetchPosts lists the subreddit and replaces the post file with the result.
// The previous file is only replaced once the listing succeeds.
func (f *Fetcher) FetchPosts(ctx context.Context) (int, error) {
	rows, err := f.client.Hot(ctx)
	if err != nil {
		return 0, fmt.Errorf("list posts: %w", err)
	}

	w, err := csvfile.CreatePostFile(f.path)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if err := w.Append(row); err != nil {
			_ = w.Close()
			return i, fmt.Errorf("append post %s: %w", row["id"], err)
		}
	}
	if err := w.Close(); err != nil {
		return len(rows), fmt.Errorf("close post file: %w", err)
	}

	f.logger.Info("post file refreshed", "path", f.path, "posts", len(rows))
	return len(rows), nil
}
