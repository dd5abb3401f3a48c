// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// index builder, the interactive query tool, the HTTP searcher and the
// optional collaborators (Redis, Kafka, relational export).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Query    QueryConfig    `yaml:"query"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Export   ExportConfig   `yaml:"export"`
	Postgres PostgresConfig `yaml:"postgres"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls how a collection is analyzed and where the snapshot
// is written.
type IndexerConfig struct {
	OutputDir       string `yaml:"outputDir"`
	RemoveStopwords bool   `yaml:"removeStopwords"`
	StopwordsFile   string `yaml:"stopwordsFile"`
	Stemming        bool   `yaml:"stemming"`
	// Stemmer is "snowball" or "suffix".
	Stemmer string `yaml:"stemmer"`
	// DigitPolicy is one of "keep", "strip" or "drop-numeric".
	DigitPolicy    string `yaml:"digitPolicy"`
	TrackPositions bool   `yaml:"trackPositions"`
	Workers        int    `yaml:"workers"`
	// Compression is one of "none", "lz4" or "zstd".
	Compression string `yaml:"compression"`
	// DuplicateIDs is one of "merge" or "reject".
	DuplicateIDs   string `yaml:"duplicateIds"`
	WriteTextDumps bool   `yaml:"writeTextDumps"`
	DebugDump      bool   `yaml:"debugDump"`
}

// QueryConfig controls the interactive query session.
type QueryConfig struct {
	SummaryRadius int    `yaml:"summaryRadius"`
	HistoryFile   string `yaml:"historyFile"`
	Prompt        string `yaml:"prompt"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       float64       `yaml:"rateLimit"`
	RateBurst       int           `yaml:"rateBurst"`
	DictionaryPath  string        `yaml:"dictionaryPath"`
	PostingsPath    string        `yaml:"postingsPath"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	// OpTimeout bounds each cache call; a run of failures opens a
	// circuit for BreakerReset.
	OpTimeout    time.Duration `yaml:"opTimeout"`
	BreakerReset time.Duration `yaml:"breakerReset"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// ExportConfig controls the optional relational copy of a snapshot.
type ExportConfig struct {
	Enabled bool `yaml:"enabled"`
	// Driver is "sqlite3" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file, used when Driver is sqlite3.
	Path string `yaml:"path"`
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

// WatchConfig controls snapshot hot reload in the searcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local use.
func Default() *Config {
	return &Config{
		Indexer: IndexerConfig{
			OutputDir:      "out",
			StopwordsFile:  "cacm/common_words",
			Stemmer:        "snowball",
			DigitPolicy:    "keep",
			TrackPositions: true,
			Workers:        1,
			Compression:    "zstd",
			DuplicateIDs:   "merge",
			WriteTextDumps: true,
		},
		Query: QueryConfig{
			SummaryRadius: 5,
			Prompt:        "term> ",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       200,
			RateBurst:       50,
			DictionaryPath:  "out/dictionary.dat",
			PostingsPath:    "out/postings.dat",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			CacheTTL:     60 * time.Second,
			OpTimeout:    100 * time.Millisecond,
			BreakerReset: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "positional-index",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Export: ExportConfig{
			Driver: "sqlite3",
			Path:   "out/index.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "positionalindex",
			User:            "positionalindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate rejects enumerated settings that no component understands.
func (c *Config) Validate() error {
	switch c.Indexer.DigitPolicy {
	case "keep", "strip", "drop-numeric":
	default:
		return fmt.Errorf("invalid indexer.digitPolicy %q", c.Indexer.DigitPolicy)
	}
	switch c.Indexer.Stemmer {
	case "snowball", "suffix":
	default:
		return fmt.Errorf("invalid indexer.stemmer %q", c.Indexer.Stemmer)
	}
	switch c.Indexer.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid indexer.compression %q", c.Indexer.Compression)
	}
	switch c.Indexer.DuplicateIDs {
	case "merge", "reject":
	default:
		return fmt.Errorf("invalid indexer.duplicateIds %q", c.Indexer.DuplicateIDs)
	}
	if c.Indexer.Workers < 1 {
		return fmt.Errorf("indexer.workers must be at least 1, got %d", c.Indexer.Workers)
	}
	if c.Query.SummaryRadius < 0 {
		return fmt.Errorf("query.summaryRadius must not be negative, got %d", c.Query.SummaryRadius)
	}
	if c.Export.Enabled {
		switch c.Export.Driver {
		case "sqlite3", "postgres":
		default:
			return fmt.Errorf("invalid export.driver %q", c.Export.Driver)
		}
	}
	return nil
}

// applyEnvOverrides reads PIX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PIX_INDEXER_OUTPUT_DIR"); v != "" {
		cfg.Indexer.OutputDir = v
	}
	if v := os.Getenv("PIX_INDEXER_STOPWORDS_FILE"); v != "" {
		cfg.Indexer.StopwordsFile = v
	}
	if v := os.Getenv("PIX_INDEXER_DIGIT_POLICY"); v != "" {
		cfg.Indexer.DigitPolicy = v
	}
	if v := os.Getenv("PIX_INDEXER_COMPRESSION"); v != "" {
		cfg.Indexer.Compression = v
	}
	if v := os.Getenv("PIX_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("PIX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PIX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PIX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PIX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("PIX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PIX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PIX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
