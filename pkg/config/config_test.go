package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceCSV, cfg.Dataset.Source)
	assert.Equal(t, "2-5-7", cfg.PSGC.Segmentation)
	assert.True(t, cfg.PSGC.StrictLevels)
	assert.Equal(t, "psgc-query-events", cfg.Kafka.Topics.QueryEvents)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
dataset:
  source: xlsx
  path: PSGC-2Q-2025.xlsx
psgc:
  segmentation: "2-4-6"
  strictLevels: false
redis:
  cacheEnabled: true
  cacheTTL: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, SourceXLSX, cfg.Dataset.Source)
	assert.Equal(t, "PSGC", cfg.Dataset.Sheet)
	assert.Equal(t, "2-4-6", cfg.PSGC.Segmentation)
	assert.False(t, cfg.PSGC.StrictLevels)
	assert.True(t, cfg.Redis.CacheEnabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.yaml", "server:\n  port: 9000\n")
	t.Setenv("PSGC_SERVER_PORT", "9100")
	t.Setenv("PSGC_STRICT_LEVELS", "false")
	t.Setenv("PSGC_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PSGC_RATE_LIMIT_WINDOW", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.PSGC.StrictLevels)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
}

func TestDotEnvFeedsOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "PSGC_DATASET_SOURCE=postgres\nPSGC_POSTGRES_HOST=db.internal\n")
	t.Cleanup(func() {
		os.Unsetenv("PSGC_DATASET_SOURCE")
		os.Unsetenv("PSGC_POSTGRES_HOST")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.Dataset.Source)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
}

func TestBadEnvValueFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PSGC_SERVER_PORT", "eighty")

	_, err := Load("")
	assert.ErrorContains(t, err, "PSGC_SERVER_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad source", func(c *Config) { c.Dataset.Source = "sqlite" }, "dataset.source"},
		{"missing path", func(c *Config) { c.Dataset.Path = "" }, "dataset.path"},
		{"missing table", func(c *Config) { c.Dataset.Source = SourcePostgres; c.Dataset.Table = "" }, "dataset.table"},
		{"zero rate", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }, "rateLimit"},
		{"cache ttl", func(c *Config) { c.Redis.CacheEnabled = true; c.Redis.CacheTTL = 0 }, "cacheTTL"},
		{"analytics topic", func(c *Config) { c.Analytics.Enabled = true; c.Kafka.Topics.QueryEvents = "" }, "queryEvents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
