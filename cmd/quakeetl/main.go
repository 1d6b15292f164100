package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-post-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/quake-post-etl/internal/adapter/gemini"
	"github.com/couchcryptid/quake-post-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/quake-post-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-post-etl/internal/adapter/reddit"
	"github.com/couchcryptid/quake-post-etl/internal/config"
	"github.com/couchcryptid/quake-post-etl/internal/observability"
	"github.com/couchcryptid/quake-post-etl/internal/pipeline"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline a single time and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, metrics, logger)
	model, err := gemini.NewCachedModel(client, cfg.GeminiCacheSize, metrics)
	if err != nil {
		logger.Error("failed to create model cache", "error", err)
		os.Exit(1)
	}

	var throttle pipeline.Throttle = pipeline.NewFixedDelay(cfg.ExtractDelay, clock)
	if cfg.ExtractThrottle == config.ThrottleTokenBucket {
		throttle = pipeline.NewTokenBucket(cfg.ExtractDelay)
	}
	logger.Info("model configured",
		"model", cfg.GeminiModel,
		"throttle", cfg.ExtractThrottle,
		"delay", cfg.ExtractDelay,
		"cache_size", cfg.GeminiCacheSize,
	)

	stages := pipeline.Stages{
		Source:    csvfile.NewPostReader(cfg.PostsFile),
		Extractor: pipeline.NewFactExtractor(model, throttle, cfg.ProgressEvery, logger, metrics),
		Snapshot:  csvfile.NewSnapshotWriter(cfg.SnapshotFile),
		Store:     csvfile.NewStoreFile(cfg.StoreFile),
	}

	// Reddit fetching is feature-flagged via REDDIT_ENABLED.
	if cfg.RedditEnabled {
		stages.Fetcher = reddit.NewFetcher(reddit.NewClient(cfg, logger), cfg.PostsFile, logger)
		logger.Info("reddit fetching enabled", "subreddit", cfg.RedditSubreddit, "limit", cfg.RedditLimit)
	} else {
		logger.Info("reddit fetching disabled, using existing post file", "path", cfg.PostsFile)
	}

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		stages.Publisher = publisher
		logger.Info("event publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(stages, clock, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		_, err := p.Run(ctx)
		closePublisher(publisher, logger)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the scheduler. It returns only after any in-flight run finishes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.RunEvery(ctx, cfg.RunInterval)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closePublisher(publisher, logger)

	logger.Info("shutdown complete")
}

func closePublisher(publisher *kafkaadapter.Publisher, logger *slog.Logger) {
	if publisher == nil {
		return
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}
}
