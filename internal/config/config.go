package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// CatalogPath points at the YAML gauge catalog.
	CatalogPath string
	// RunInterval schedules repeated runs. Zero runs once and exits.
	RunInterval  time.Duration
	FetchTimeout time.Duration
	FitTimeout   time.Duration
	WorkerCount  int

	// Optional sinks and stores. Empty values disable them.
	DatabaseURL        string
	GeoDatabaseURL     string
	GeoCacheSize       int
	KafkaBrokers       []string
	KafkaForecastTopic string
	KafkaSeriesTopic   string
	RedisURL           string
	RedisChannel       string

	ArchivePath             string
	ArchiveCompressionLevel int
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runInterval, err := parseDuration("RUN_INTERVAL", "0s", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	fitTimeout, err := parseDuration("FIT_TIMEOUT", "2m", false)
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKER_COUNT", 4, 1, 64)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("GEO_CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	level, err := parseInt("ARCHIVE_COMPRESSION_LEVEL", 3, 1, 4)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogPath:  os.Getenv("CATALOG_PATH"),
		RunInterval:  runInterval,
		FetchTimeout: fetchTimeout,
		FitTimeout:   fitTimeout,
		WorkerCount:  workers,

		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeoDatabaseURL:     os.Getenv("GEO_DATABASE_URL"),
		GeoCacheSize:       cacheSize,
		KafkaBrokers:       brokers,
		KafkaForecastTopic: sharedcfg.EnvOrDefault("KAFKA_FORECAST_TOPIC", "water-level-forecasts"),
		KafkaSeriesTopic:   sharedcfg.EnvOrDefault("KAFKA_SERIES_TOPIC", "validated-series"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisChannel:       sharedcfg.EnvOrDefault("REDIS_CHANNEL", "hydro:forecasts"),

		ArchivePath:             os.Getenv("ARCHIVE_PATH"),
		ArchiveCompressionLevel: level,
	}

	if cfg.CatalogPath == "" {
		return nil, errors.New("CATALOG_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaForecastTopic == "" {
		return nil, errors.New("KAFKA_FORECAST_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}
