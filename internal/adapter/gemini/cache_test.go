package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-post-etl/internal/observability"
)

// --- mock for cache tests ---

type countingModel struct {
	calls  int
	answer string
	err    error
}

func (m *countingModel) Generate(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.answer, m.err
}

func newCached(t *testing.T, inner *countingModel, size int) (*CachedModel, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	cached, err := NewCachedModel(inner, size, metrics)
	require.NoError(t, err)
	return cached, metrics
}

// --- CachedModel tests ---

func TestCachedModel_CacheHit(t *testing.T) {
	inner := &countingModel{answer: "[Lima, 6.3, -12.0464, -77.0428]"}
	cached, metrics := newCached(t, inner, 10)

	r1, err := cached.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	r2, err := cached.Generate(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ModelCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ModelCache.WithLabelValues("miss")), 0)
}

func TestCachedModel_DistinctPrompts(t *testing.T) {
	inner := &countingModel{answer: "[Lima, 6.3, 0, 0]"}
	cached, _ := newCached(t, inner, 10)

	_, _ = cached.Generate(context.Background(), "prompt A")
	_, _ = cached.Generate(context.Background(), "prompt B")

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedModel_ErrorNotCached(t *testing.T) {
	inner := &countingModel{err: errors.New("quota exceeded")}
	cached, _ := newCached(t, inner, 10)

	_, err := cached.Generate(context.Background(), "prompt")
	require.Error(t, err)
	_, err = cached.Generate(context.Background(), "prompt")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedModel_MalformedAnswerNotCached(t *testing.T) {
	inner := &countingModel{answer: "I could not find a location."}
	cached, _ := newCached(t, inner, 10)

	_, _ = cached.Generate(context.Background(), "prompt")
	_, _ = cached.Generate(context.Background(), "prompt")

	assert.Equal(t, 2, inner.calls, "malformed answers should be retried")
}

func TestCachedModel_Eviction(t *testing.T) {
	inner := &countingModel{answer: "[Quito, 4.2, 0, 0]"}
	cached, _ := newCached(t, inner, 2)

	_, _ = cached.Generate(context.Background(), "a")
	_, _ = cached.Generate(context.Background(), "b")
	_, _ = cached.Generate(context.Background(), "c") // evicts "a"
	assert.Equal(t, 3, inner.calls)

	_, _ = cached.Generate(context.Background(), "c")
	assert.Equal(t, 3, inner.calls, "c should still be cached")

	_, _ = cached.Generate(context.Background(), "a")
	assert.Equal(t, 4, inner.calls, "a should have been evicted")
}

func TestNewCachedModel_InvalidSize(t *testing.T) {
	_, err := NewCachedModel(&countingModel{}, 0, observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestPromptKey(t *testing.T) {
	assert.Equal(t, promptKey("same"), promptKey("same"))
	assert.NotEqual(t, promptKey("one"), promptKey("two"))
	assert.Len(t, promptKey("anything"), 64)
}
