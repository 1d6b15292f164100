package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Throttle strategies for pacing model calls.
const (
	ThrottleFixed       = "fixed"
	ThrottleTokenBucket = "token-bucket"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir      string
	PostsFile    string
	SnapshotFile string
	StoreFile    string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration

	// Gemini text model configuration.
	GeminiAPIKey    string
	GeminiModel     string
	GeminiTimeout   time.Duration
	GeminiCacheSize int

	ExtractDelay    time.Duration
	ExtractThrottle string
	ProgressEvery   int

	// Reddit post fetcher configuration.
	RedditEnabled      bool
	RedditSubreddit    string
	RedditLimit        int
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runInterval, err := parseDuration("RUN_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	geminiTimeout, err := parseDuration("GEMINI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	extractDelay, err := parseDuration("EXTRACT_DELAY", "4s")
	if err != nil {
		return nil, err
	}

	progressEvery, err := parsePositiveInt("PROGRESS_EVERY", 5)
	if err != nil {
		return nil, err
	}
	redditLimit, err := parsePositiveInt("REDDIT_LIMIT", 15)
	if err != nil {
		return nil, err
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")

	cfg := &Config{
		DataDir:      dataDir,
		PostsFile:    filepath.Join(dataDir, sharedcfg.EnvOrDefault("POSTS_FILE", "datos_reddit.csv")),
		SnapshotFile: filepath.Join(dataDir, sharedcfg.EnvOrDefault("SNAPSHOT_FILE", "terremotos_procesados.csv")),
		StoreFile:    filepath.Join(dataDir, sharedcfg.EnvOrDefault("STORE_FILE", "Earthquakes_posts_new.csv")),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunInterval:     runInterval,

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemma-3-1b-it"),
		GeminiTimeout:   geminiTimeout,
		GeminiCacheSize: parseCacheSize(),

		ExtractDelay:    extractDelay,
		ExtractThrottle: sharedcfg.EnvOrDefault("EXTRACT_THROTTLE", ThrottleFixed),
		ProgressEvery:   progressEvery,

		RedditEnabled:      os.Getenv("REDDIT_ENABLED") == "true",
		RedditSubreddit:    sharedcfg.EnvOrDefault("REDDIT_SUBREDDIT", "Earthquakes"),
		RedditLimit:        redditLimit,
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    sharedcfg.EnvOrDefault("REDDIT_USER_AGENT", "quake-post-etl/1.0"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "seismic-events"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if cfg.ExtractThrottle != ThrottleFixed && cfg.ExtractThrottle != ThrottleTokenBucket {
		return nil, fmt.Errorf("invalid EXTRACT_THROTTLE %q: want %s or %s", cfg.ExtractThrottle, ThrottleFixed, ThrottleTokenBucket)
	}
	if cfg.RedditLimit > 100 {
		return nil, errors.New("REDDIT_LIMIT must be between 1 and 100")
	}
	if (cfg.RedditClientID == "") != (cfg.RedditClientSecret == "") {
		return nil, errors.New("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET must be set together")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEMINI_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 500
}
