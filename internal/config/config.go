package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// The source list comes from a YAML file (see sources.go).
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseDSN string
	SQLDebug    bool

	BaseURL   string
	UserAgent string

	ScrapeInterval   time.Duration
	SourceTimeout    time.Duration
	RunTimeout       time.Duration
	FetchRetries     int
	FetchBackoffBase time.Duration
	EmptyIsFailure   bool

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	Sources        []Source
	KnownLocations []string
}

// Load reads configuration from environment variables and the sources file,
// applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	scrapeInterval, err := envDuration("SCRAPE_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := envDuration("SOURCE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	runTimeout, err := envDuration("RUN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	backoffBase, err := envDuration("FETCH_BACKOFF_BASE", time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := envInt("FETCH_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if retries < 1 || retries > 10 {
		return nil, errors.New("FETCH_RETRIES must be between 1 and 10")
	}

	kafkaEnabled := envOrDefault("KAFKA_ENABLED", "false") == "true"
	kafkaBrokers := splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092"))

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseDSN: envOrDefault("DATABASE_DSN", "file:data/vmgd.db"),
		SQLDebug:    envOrDefault("SQL_DEBUG", "false") == "true",

		BaseURL:   envOrDefault("VMGD_BASE_URL", defaultBaseURL),
		UserAgent: envOrDefault("USER_AGENT", "vmgd-scraper-service/1.0 (+https://github.com/couchcryptid/vmgd-scraper-service)"),

		ScrapeInterval:   scrapeInterval,
		SourceTimeout:    sourceTimeout,
		RunTimeout:       runTimeout,
		FetchRetries:     retries,
		FetchBackoffBase: backoffBase,
		EmptyIsFailure:   envOrDefault("EMPTY_IS_FAILURE", "false") == "true",

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "vmgd-records"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	sources, locations, err := loadSources(os.Getenv("SOURCES_FILE"), cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	cfg.KnownLocations = locations

	if len(cfg.Sources) == 0 {
		return nil, errors.New("no scrape sources configured")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
