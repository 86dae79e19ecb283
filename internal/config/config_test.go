package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = "/etc/hydro/catalog.yaml"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CATALOG_PATH", testCatalog)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testCatalog, cfg.CatalogPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FitTimeout)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 1000, cfg.GeoCacheSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "water-level-forecasts", cfg.KafkaForecastTopic)
	assert.Equal(t, "validated-series", cfg.KafkaSeriesTopic)
	assert.Equal(t, "hydro:forecasts", cfg.RedisChannel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.ArchivePath)
	assert.Equal(t, 3, cfg.ArchiveCompressionLevel)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CATALOG_PATH", testCatalog)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_INTERVAL", "15m")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FIT_TIMEOUT", "45s")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("DATABASE_URL", "postgres://localhost/hydro")
	t.Setenv("GEO_DATABASE_URL", "postgres://localhost/geo")
	t.Setenv("GEO_CACHE_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_FORECAST_TOPIC", "fc")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ARCHIVE_PATH", "/var/lib/hydro")
	t.Setenv("ARCHIVE_COMPRESSION_LEVEL", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 45*time.Second, cfg.FitTimeout)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, "postgres://localhost/hydro", cfg.DatabaseURL)
	assert.Equal(t, "postgres://localhost/geo", cfg.GeoDatabaseURL)
	assert.Equal(t, 50, cfg.GeoCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fc", cfg.KafkaForecastTopic)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "/var/lib/hydro", cfg.ArchivePath)
	assert.Equal(t, 1, cfg.ArchiveCompressionLevel)
}

func TestLoad_CatalogPathRequired(t *testing.T) {
	t.Setenv("CATALOG_PATH", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_PATH")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"RUN_INTERVAL", "-5m"},
		{"FETCH_TIMEOUT", "0s"},
		{"FIT_TIMEOUT", "soon"},
		{"WORKER_COUNT", "0"},
		{"WORKER_COUNT", "65"},
		{"GEO_CACHE_SIZE", "many"},
		{"ARCHIVE_COMPRESSION_LEVEL", "9"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("CATALOG_PATH", testCatalog)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
