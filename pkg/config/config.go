// Package config loads and validates service configuration from YAML files
// with environment-variable overrides. A .env file, when present, is read
// first so its values take part in the overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PSGC_"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	PSGC      PSGCConfig      `yaml:"psgc"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// Dataset sources.
const (
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
	SourcePostgres = "postgres"
)

// DatasetConfig selects where the PSGC records are loaded from.
type DatasetConfig struct {
	Source      string        `yaml:"source"`
	Path        string        `yaml:"path"`
	Sheet       string        `yaml:"sheet"`
	Table       string        `yaml:"table"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// PSGCConfig controls how codes are segmented and how unknown levels are
// treated by search.
type PSGCConfig struct {
	Segmentation string `yaml:"segmentation"`
	StrictLevels bool   `yaml:"strictLevels"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and response-cache parameters.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	CacheEnabled bool          `yaml:"cacheEnabled"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents string `yaml:"queryEvents"`
}

// AnalyticsConfig controls query-event publishing from the API and the
// aggregator service that consumes them.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Port             int           `yaml:"port"`
	URL              string        `yaml:"url"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	TopN             int           `yaml:"topN"`
}

// RateLimitConfig sets the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requestsPerWindow"`
	Window            time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the standalone Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides, including any defined in a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Dataset.Source {
	case SourceCSV, SourceXLSX:
		if c.Dataset.Path == "" {
			errs = append(errs, fmt.Errorf("dataset.path is required for source %q", c.Dataset.Source))
		}
	case SourcePostgres:
		if c.Dataset.Table == "" {
			errs = append(errs, errors.New("dataset.table is required for source postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("dataset.source %q: want csv, xlsx or postgres", c.Dataset.Source))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rateLimit needs a positive requestsPerWindow and window"))
	}
	if c.Redis.CacheEnabled && c.Redis.CacheTTL <= 0 {
		errs = append(errs, errors.New("redis.cacheTTL must be positive when the cache is enabled"))
	}
	if c.Analytics.Enabled && c.Kafka.Topics.QueryEvents == "" {
		errs = append(errs, errors.New("kafka.topics.queryEvents is required when analytics is enabled"))
	}
	return errors.Join(errs...)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Dataset: DatasetConfig{
			Source:      SourceCSV,
			Path:        "data/psgc.csv",
			Sheet:       "PSGC",
			Table:       "psgc_records",
			LoadTimeout: 2 * time.Minute,
		},
		PSGC: PSGCConfig{
			Segmentation: "2-5-7",
			StrictLevels: true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "psgc",
			User:            "psgc",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "psgc-analytics",
			Topics: KafkaTopics{
				QueryEvents: "psgc-query-events",
			},
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			URL:              "http://localhost:8083",
			BufferSize:       1024,
			SnapshotInterval: time.Minute,
			TopN:             20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 600,
			Window:            time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// applyEnvOverrides reads PSGC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			parts := strings.Split(v, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*dst = parts
		}
	}

	num("SERVER_PORT", &cfg.Server.Port)
	dur("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	list("SERVER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	str("DATASET_SOURCE", &cfg.Dataset.Source)
	str("DATASET_PATH", &cfg.Dataset.Path)
	str("DATASET_SHEET", &cfg.Dataset.Sheet)
	str("DATASET_TABLE", &cfg.Dataset.Table)

	str("SEGMENTATION", &cfg.PSGC.Segmentation)
	flag("STRICT_LEVELS", &cfg.PSGC.StrictLevels)

	str("POSTGRES_HOST", &cfg.Postgres.Host)
	num("POSTGRES_PORT", &cfg.Postgres.Port)
	str("POSTGRES_DATABASE", &cfg.Postgres.Database)
	str("POSTGRES_USER", &cfg.Postgres.User)
	str("POSTGRES_PASSWORD", &cfg.Postgres.Password)
	str("POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	flag("REDIS_CACHE_ENABLED", &cfg.Redis.CacheEnabled)
	dur("REDIS_CACHE_TTL", &cfg.Redis.CacheTTL)

	list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("KAFKA_TOPIC_QUERY_EVENTS", &cfg.Kafka.Topics.QueryEvents)

	flag("ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	num("ANALYTICS_PORT", &cfg.Analytics.Port)
	str("ANALYTICS_URL", &cfg.Analytics.URL)

	flag("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	num("RATE_LIMIT_REQUESTS", &cfg.RateLimit.RequestsPerWindow)
	dur("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	str("LOGGING_LEVEL", &cfg.Logging.Level)
	str("LOGGING_FORMAT", &cfg.Logging.Format)

	flag("METRICS_ENABLED", &cfg.Metrics.Enabled)
	num("METRICS_PORT", &cfg.Metrics.Port)

	return errors.Join(errs...)
}
