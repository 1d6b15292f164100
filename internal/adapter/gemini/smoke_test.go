//go:build gemini

package gemini

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
	"github.com/couchcryptid/quake-post-etl/internal/observability"
)

// These tests hit the real Gemini API and require a valid GEMINI_API_KEY env var.
// Run with: go test -tags=gemini ./internal/adapter/gemini/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Fatal("GEMINI_API_KEY must be set to run smoke tests")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemma-3-1b-it"
	}
	return NewClient(key, model, 30*time.Second, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ExtractLima(t *testing.T) {
	c := smokeClient(t)

	prompt := domain.BuildPrompt("Quake hits Lima", "A magnitude 6.3 earthquake hit Lima, Peru.")
	text, err := c.Generate(context.Background(), prompt)
	require.NoError(t, err)

	facts, ok := domain.ParseFacts(text)
	require.True(t, ok, "response should contain a bracketed list: %q", text)
	assert.Contains(t, facts.Location, "Lima")
	t.Logf("facts: %+v", facts)
}
