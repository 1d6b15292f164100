package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quake-post-etl/internal/domain"
	"github.com/couchcryptid/quake-post-etl/internal/observability"
)

// Extraction failure reasons, used as metric labels.
const (
	reasonModelError        = "model_error"
	reasonMalformedResponse = "malformed_response"
)

// FactExtractor asks a text model for the location, magnitude and coordinates
// of each post, one call at a time in input order.
type FactExtractor struct {
	model         domain.TextModel
	throttle      Throttle
	progressEvery int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewFactExtractor creates a FactExtractor. progressEvery controls how often a
// progress line is logged; values below 1 disable it.
func NewFactExtractor(model domain.TextModel, throttle Throttle, progressEvery int, logger *slog.Logger, metrics *observability.Metrics) *FactExtractor {
	return &FactExtractor{
		model:         model,
		throttle:      throttle,
		progressEvery: progressEvery,
		logger:        logger,
		metrics:       metrics,
	}
}

// Extract enriches every post and drops those with an undetermined location.
// Model failures never abort the batch: the post gets the failure tuple and is
// then dropped with the other undetermined ones.
func (x *FactExtractor) Extract(ctx context.Context, posts []domain.NormalizedPost) []domain.ExtractedEvent {
	events := make([]domain.ExtractedEvent, 0, len(posts))

	for i, post := range posts {
		facts := x.factsFor(ctx, post)
		events = append(events, domain.Enrich(post, facts))

		if err := x.throttle.Wait(ctx); err != nil {
			// Only a cancelled context stops the wait; keep going without pacing.
			x.logger.Debug("throttle wait interrupted", "error", err)
		}

		if x.progressEvery > 0 && (i+1)%x.progressEvery == 0 {
			x.logger.Info("extraction progress", "processed", i+1, "total", len(posts))
		}
	}

	kept := domain.DropUndetermined(events)
	if dropped := len(events) - len(kept); dropped > 0 {
		x.metrics.UndeterminedDropped.Add(float64(dropped))
		x.logger.Debug("dropped undetermined events", "count", dropped)
	}
	return kept
}

func (x *FactExtractor) factsFor(ctx context.Context, post domain.NormalizedPost) domain.Facts {
	response, err := x.model.Generate(ctx, domain.BuildPrompt(post.Title, post.Body))
	if err != nil {
		x.logger.Warn("fact extraction failed",
			"error", err,
			"post_id", post.ID,
			"title", post.Title,
		)
		x.metrics.ExtractionFailures.WithLabelValues(reasonModelError).Inc()
		return domain.FailedFacts
	}

	facts, ok := domain.ParseFacts(response)
	if !ok {
		x.logger.Warn("model response has no bracketed list",
			"post_id", post.ID,
			"title", post.Title,
			"response", response,
		)
		x.metrics.ExtractionFailures.WithLabelValues(reasonMalformedResponse).Inc()
	}
	return facts
}
