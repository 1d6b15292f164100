package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
	"github.com/couchcryptid/quake-post-etl/internal/observability"
)

// CachedModel wraps a TextModel with an in-memory LRU cache keyed by prompt.
// A post file that repeats most of the previous fetch costs no model calls for
// the repeated posts.
type CachedModel struct {
	inner   domain.TextModel
	cache   *lru.Cache[string, string]
	metrics *observability.Metrics
}

// NewCachedModel creates a cache decorator around a text model.
func NewCachedModel(inner domain.TextModel, maxEntries int, metrics *observability.Metrics) (*CachedModel, error) {
	cache, err := lru.New[string, string](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create model cache: %w", err)
	}
	return &CachedModel{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}, nil
}

func (c *CachedModel) Generate(ctx context.Context, prompt string) (string, error) {
	key := promptKey(prompt)
	if text, ok := c.cache.Get(key); ok {
		c.metrics.ModelCache.WithLabelValues("hit").Inc()
		return text, nil
	}
	c.metrics.ModelCache.WithLabelValues("miss").Inc()

	text, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return text, err
	}
	// Only answers carrying a bracketed list are cached; malformed ones get retried.
	if strings.Contains(text, "[") && strings.Contains(text, "]") {
		c.cache.Add(key, text)
	}
	return text, nil
}

// Len reports the number of cached answers.
func (c *CachedModel) Len() int {
	return c.cache.Len()
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
