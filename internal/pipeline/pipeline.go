package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
	"github.com/couchcryptid/quake-post-etl/internal/observability"
)

// PostFetcher refreshes the post file from the social-media source.
type PostFetcher interface {
	FetchPosts(ctx context.Context) (int, error)
}

// PostSource reads the raw posts of the current batch.
type PostSource interface {
	LoadPosts(ctx context.Context) ([]domain.RawPost, error)
}

// Extractor turns normalized posts into extracted events.
type Extractor interface {
	Extract(ctx context.Context, posts []domain.NormalizedPost) []domain.ExtractedEvent
}

// SnapshotWriter persists the batch of extracted events of one run.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, events []domain.ExtractedEvent) error
}

// StoreRepository loads and replaces the canonical event store.
// LoadStore returns nil, nil when no store exists yet.
type StoreRepository interface {
	LoadStore(ctx context.Context) (*domain.EventStore, error)
	SaveStore(ctx context.Context, store domain.EventStore) error
}

// EventPublisher announces events that a run added to the store.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.ExtractedEvent) error
}

// Stages bundles the collaborators of a run. Fetcher and Publisher are optional.
type Stages struct {
	Fetcher   PostFetcher
	Source    PostSource
	Extractor Extractor
	Snapshot  SnapshotWriter
	Store     StoreRepository
	Publisher EventPublisher
}

// RunSummary describes the most recent run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Posts      int       `json:"posts"`
	Extracted  int       `json:"extracted"`
	Added      int       `json:"added"`
	StoreSize  int       `json:"store_size"`
	Error      string    `json:"error,omitempty"`
}

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Pipeline orchestrates fetch, normalize, extract, snapshot and merge.
type Pipeline struct {
	stages  Stages
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	running atomic.Bool
	ready   atomic.Bool
	last    atomic.Pointer[RunSummary]
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		stages:  stages,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent run, if any.
func (p *Pipeline) LastRun() (RunSummary, bool) {
	s := p.last.Load()
	if s == nil {
		return RunSummary{}, false
	}
	return *s, true
}

// Run executes one full pass and returns the resulting store. A failure before
// the store is saved leaves the previous store untouched.
func (p *Pipeline) Run(ctx context.Context) (domain.EventStore, error) {
	if !p.running.CompareAndSwap(false, true) {
		return domain.EventStore{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	summary := RunSummary{RunID: uuid.NewString(), StartedAt: p.clock.Now()}
	logger := p.logger.With("run_id", summary.RunID)
	logger.Info("pipeline run started")

	store, err := p.run(ctx, logger, &summary)

	summary.FinishedAt = p.clock.Now()
	p.metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	if err != nil {
		summary.Error = err.Error()
		p.metrics.Runs.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "error", err)
	} else {
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.ready.Store(true)
		logger.Info("pipeline run complete",
			"posts", summary.Posts,
			"extracted", summary.Extracted,
			"added", summary.Added,
			"store_size", summary.StoreSize,
			"duration", summary.FinishedAt.Sub(summary.StartedAt),
		)
	}
	p.last.Store(&summary)

	return store, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, summary *RunSummary) (domain.EventStore, error) {
	if p.stages.Fetcher != nil {
		n, err := p.stages.Fetcher.FetchPosts(ctx)
		if err != nil {
			logger.Warn("post fetch failed, using existing post file", "error", err)
		} else {
			logger.Info("posts fetched", "count", n)
		}
	}

	raw, err := p.stages.Source.LoadPosts(ctx)
	if err != nil {
		return domain.EventStore{}, fmt.Errorf("load posts: %w", err)
	}
	summary.Posts = len(raw)
	p.metrics.PostsLoaded.Add(float64(len(raw)))

	posts := domain.NormalizePosts(raw)
	for _, post := range posts {
		if !post.Resolved() {
			p.metrics.UnresolvedTimestamp.Inc()
			logger.Debug("creation date unresolved", "post_id", post.ID, "created", post.CreatedRaw)
		}
	}

	batch := p.stages.Extractor.Extract(ctx, posts)
	summary.Extracted = len(batch)

	if err := p.stages.Snapshot.WriteSnapshot(ctx, batch); err != nil {
		return domain.EventStore{}, fmt.Errorf("write snapshot: %w", err)
	}

	existing, err := p.stages.Store.LoadStore(ctx)
	if err != nil {
		return domain.EventStore{}, fmt.Errorf("load store: %w", err)
	}

	res := domain.Merge(existing, batch)
	logger.Debug("batch merged",
		"added", len(res.Added),
		"duplicates", res.Duplicates,
		"out_of_range", res.OutOfRange,
	)

	if err := p.stages.Store.SaveStore(ctx, res.Store); err != nil {
		return domain.EventStore{}, fmt.Errorf("save store: %w", err)
	}
	summary.Added = len(res.Added)
	summary.StoreSize = len(res.Store.Events)
	p.metrics.StoreSize.Set(float64(len(res.Store.Events)))

	p.publish(ctx, logger, res.Added)

	return res.Store, nil
}

// publish runs after the store is committed, so its failures are only logged.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, added []domain.ExtractedEvent) {
	if p.stages.Publisher == nil || len(added) == 0 {
		return
	}
	if err := p.stages.Publisher.Publish(ctx, added); err != nil {
		logger.Error("publish added events failed", "error", err, "count", len(added))
		return
	}
	p.metrics.EventsPublished.Add(float64(len(added)))
}

// RunEvery runs the pipeline immediately and then once per interval until ctx
// is done. A run in progress is never interrupted: it is detached from ctx and
// RunEvery returns only after it finishes.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	p.logger.Info("scheduler started", "interval", interval)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Errors are already logged and recorded in the run summary.
		_, _ = p.Run(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return
		case <-ticker.Chan():
		}
	}
}
