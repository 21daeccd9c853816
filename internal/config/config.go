package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the driftwatch server and CLI
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Redis        RedisConfig        `yaml:"redis"`
	NATS         NATSConfig         `yaml:"nats"`
	Store        StoreConfig        `yaml:"store"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer"`
	Drift        DriftConfig        `yaml:"drift"`
	Aggregator   AggregatorConfig   `yaml:"aggregator"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Backends     []BackendConfig    `yaml:"backends"`
	Auth         AuthConfig         `yaml:"auth"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"` // empty disables caching
}

type NATSConfig struct {
	URL string `yaml:"url"` // empty disables event publishing
}

// StoreConfig selects the time-series store driver: "mongo" or "sqlite"
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlitePath"`
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty uses the embedded default catalog
}

type AnalyzerConfig struct {
	LexiconPath string `yaml:"lexiconPath"`
	TopKeywords int    `yaml:"topKeywords"`
}

// DriftConfig is the dampening and alert policy for change events
type DriftConfig struct {
	ReferenceWindow time.Duration `yaml:"referenceWindow"`
	HighThreshold   float64       `yaml:"highThreshold"`
	MediumThreshold float64       `yaml:"mediumThreshold"`
}

type AggregatorConfig struct {
	HeatmapWindow    int           `yaml:"heatmapWindow"`
	AnomalyWindow    int           `yaml:"anomalyWindow"`
	MinSampleSize    int           `yaml:"minSampleSize"`
	ZThreshold       float64       `yaml:"zThreshold"`
	HeatmapCacheTTL  time.Duration `yaml:"heatmapCacheTtl"`
	CorrelationFloor int           `yaml:"correlationMinModels"`
}

type OrchestratorConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	MaxRetries     int           `yaml:"maxRetries"`
	CallTimeout    time.Duration `yaml:"callTimeout"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
}

type AuthConfig struct {
	Username  string        `yaml:"username"`
	Password  string        `yaml:"-"`
	JWTSecret string        `yaml:"-"`
	TokenTTL  time.Duration `yaml:"tokenTtl"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"` // empty disables the scheduler
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "driftwatch",
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "driftwatch.db",
		},
		Analyzer: AnalyzerConfig{TopKeywords: 5},
		Drift: DriftConfig{
			ReferenceWindow: 24 * time.Hour,
			HighThreshold:   0.75,
			MediumThreshold: 0.5,
		},
		Aggregator: AggregatorConfig{
			HeatmapWindow:    10,
			AnomalyWindow:    30,
			MinSampleSize:    5,
			ZThreshold:       2.0,
			HeatmapCacheTTL:  5 * time.Minute,
			CorrelationFloor: 3,
		},
		Orchestrator: OrchestratorConfig{
			Concurrency:    4,
			MaxRetries:     2,
			CallTimeout:    30 * time.Second,
			InitialBackoff: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Username: "admin",
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, .env and the
// process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("DRIFTWATCH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnv()

	if len(cfg.Backends) == 0 {
		cfg.Backends = DefaultBackends()
	} else {
		for i := range cfg.Backends {
			cfg.Backends[i].ResolveKey()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Mongo.URI = getEnvOrDefault("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnvOrDefault("MONGO_DB", c.Mongo.Database)
	c.Redis.Addr = getEnvOrDefault("REDIS_URI", c.Redis.Addr)
	// go-redis wants host:port
	if len(c.Redis.Addr) > 8 && c.Redis.Addr[:8] == "redis://" {
		c.Redis.Addr = c.Redis.Addr[8:]
	}
	c.NATS.URL = getEnvOrDefault("NATS_URL", c.NATS.URL)
	c.Store.Driver = getEnvOrDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.Store.SQLitePath)
	c.Catalog.Path = getEnvOrDefault("CATALOG_PATH", c.Catalog.Path)
	c.Analyzer.LexiconPath = getEnvOrDefault("LEXICON_PATH", c.Analyzer.LexiconPath)
	c.Orchestrator.Concurrency = getEnvInt("CONCURRENCY", c.Orchestrator.Concurrency)
	c.Orchestrator.MaxRetries = getEnvInt("MAX_RETRIES", c.Orchestrator.MaxRetries)
	c.Orchestrator.CallTimeout = getEnvDuration("CALL_TIMEOUT", c.Orchestrator.CallTimeout)
	c.Drift.ReferenceWindow = getEnvDuration("DRIFT_REFERENCE_WINDOW", c.Drift.ReferenceWindow)
	c.Auth.Username = getEnvOrDefault("HOST_USERNAME", c.Auth.Username)
	c.Auth.Password = getEnvOrDefault("HOST_PASSWORD", c.Auth.Password)
	c.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", c.Auth.JWTSecret)
	c.Schedule.Cron = getEnvOrDefault("SCHEDULE_CRON", c.Schedule.Cron)
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Drift.ReferenceWindow <= 0 {
		return fmt.Errorf("drift reference window must be positive")
	}
	if c.Drift.MediumThreshold < 0 || c.Drift.HighThreshold > 1 || c.Drift.MediumThreshold > c.Drift.HighThreshold {
		return fmt.Errorf("drift thresholds must satisfy 0 <= medium <= high <= 1")
	}
	if c.Orchestrator.Concurrency < 1 {
		return fmt.Errorf("orchestrator concurrency must be at least 1")
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator max retries must not be negative")
	}
	if c.Orchestrator.CallTimeout <= 0 {
		return fmt.Errorf("orchestrator call timeout must be positive")
	}
	if c.Aggregator.HeatmapWindow < 1 || c.Aggregator.AnomalyWindow < 1 {
		return fmt.Errorf("aggregator windows must be at least 1")
	}
	if c.Aggregator.MinSampleSize < 2 {
		return fmt.Errorf("aggregator min sample size must be at least 2")
	}
	if c.Aggregator.ZThreshold <= 0 {
		return fmt.Errorf("aggregator z threshold must be positive")
	}
	if c.Auth.Password != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when HOST_PASSWORD is set")
	}
	if c.Analyzer.TopKeywords < 1 {
		return fmt.Errorf("analyzer top keywords must be at least 1")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if err := b.validate(); err != nil {
			return err
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend %s", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
