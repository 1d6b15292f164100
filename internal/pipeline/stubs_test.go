package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

const (
	limaBody   = "A magnitude 6.3 earthquake hit Lima, Peru. 2024-03-01 10:15:00 UTC"
	limaAnswer = "[Lima, 6.3, -12.0464, -77.0428]"
)

var errSourceMissing = errors.New("post file not found")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel answers by post title and records the titles it was asked about.
type scriptedModel struct {
	mu       sync.Mutex
	answers  map[string]string
	failures map[string]error
	fallback string
	asked    []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	title := titleOf(prompt)
	m.asked = append(m.asked, title)
	if err, ok := m.failures[title]; ok {
		return "", err
	}
	if a, ok := m.answers[title]; ok {
		return a, nil
	}
	return m.fallback, nil
}

// titleOf recovers the title BuildPrompt embedded in prompt.
func titleOf(prompt string) string {
	const marker = "look in the title: "
	i := strings.Index(prompt, marker)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(marker):]
	if j := strings.Index(rest, ". If neither"); j >= 0 {
		return rest[:j]
	}
	return rest
}

type failingModel struct{ err error }

func (m failingModel) Generate(context.Context, string) (string, error) { return "", m.err }

type countingThrottle struct{ waits int }

func (c *countingThrottle) Wait(context.Context) error {
	c.waits++
	return nil
}

type memSource struct {
	posts []domain.RawPost
	err   error
	loads int
}

func (s *memSource) LoadPosts(context.Context) ([]domain.RawPost, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.RawPost(nil), s.posts...), nil
}

type stubFetcher struct {
	err   error
	calls int
}

func (f *stubFetcher) FetchPosts(context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

type memSnapshot struct {
	writes int
	last   []domain.ExtractedEvent
	err    error
}

func (s *memSnapshot) WriteSnapshot(_ context.Context, events []domain.ExtractedEvent) error {
	if s.err != nil {
		return s.err
	}
	s.writes++
	s.last = events
	return nil
}

type memStore struct {
	store   *domain.EventStore
	saves   int
	loadErr error
	saveErr error
}

func (s *memStore) LoadStore(context.Context) (*domain.EventStore, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.store == nil {
		return nil, nil
	}
	cp := *s.store
	return &cp, nil
}

func (s *memStore) SaveStore(_ context.Context, store domain.EventStore) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.store = &store
	return nil
}

type recordingPublisher struct {
	batches [][]domain.ExtractedEvent
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, events []domain.ExtractedEvent) error {
	p.batches = append(p.batches, events)
	return p.err
}

func rawPost(id, title, created, body string) domain.RawPost {
	return domain.PostFromFields(map[string]string{
		domain.ColID:      id,
		domain.ColTitle:   title,
		domain.ColCreated: created,
		domain.ColBody:    body,
	})
}
