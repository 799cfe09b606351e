// Package config loads the query execution core's runtime knobs from
// environment variables, an optional .env file, and an optional YAML
// file, decoding the loaded values into typed sub-configs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
}

// ServerConfig controls the HTTP/MCP driver surface (internal/httpapi,
// internal/mcptools, cmd/server).
type ServerConfig struct {
	Port         int    `json:"port" yaml:"port"`
	Host         string `json:"host" yaml:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	DebugPort    int    `json:"debug_port" yaml:"debug_port"`
}

// EngineConfig carries the execution-core knobs spec.md's Size Budget and
// §4 modules parameterize: vector batch size, the SIP heuristic ratio,
// the DP solver's build-side penalty and default selectivities, the
// join-order solver's exact-DP cutoff, the aggregate hash table's load
// factor, and the BFS dispatcher's worker pool size.
type EngineConfig struct {
	VectorCapacity int     `json:"vector_capacity" yaml:"vector_capacity"`
	SIPRatio       float64 `json:"sip_ratio" yaml:"sip_ratio"`
	BuildPenalty   float64 `json:"build_penalty" yaml:"build_penalty"`
	EqualitySel    float64 `json:"equality_selectivity" yaml:"equality_selectivity"`
	NonEqualitySel float64 `json:"non_equality_selectivity" yaml:"non_equality_selectivity"`
	MaxLevelExact  int     `json:"max_level_exact" yaml:"max_level_exact"`
	LoadFactor     float64 `json:"load_factor" yaml:"load_factor"`
	WorkerThreads  int     `json:"worker_threads" yaml:"worker_threads"`
}

// CatalogConfig selects and parameterizes one of the reference
// Catalog+Storage backends (internal/catalog/sqlitecat,
// internal/catalog/pgcat, internal/catalog/fixture).
type CatalogConfig struct {
	Backend  string         `json:"backend" yaml:"backend"` // "sqlite", "postgres", "fixture"
	SQLite   SQLiteConfig   `json:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
	Fixture  FixtureConfig  `json:"fixture" yaml:"fixture"`
}

// SQLiteConfig points sqlitecat at its backing database file.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// PostgresConfig points pgcat at a Postgres database via lib/pq.
type PostgresConfig struct {
	Host           string        `json:"host" yaml:"host"`
	Port           int           `json:"port" yaml:"port"`
	Database       string        `json:"database" yaml:"database"`
	User           string        `json:"user" yaml:"user"`
	Password       string        `json:"-" yaml:"-"`
	SSLMode        string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns   int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns   int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	QueryTimeout   time.Duration `json:"query_timeout" yaml:"query_timeout"`
}

// FixtureConfig points the YAML-fixture catalog loader at its source file
// (e.g. the tinysnb dataset used in the §8 end-to-end scenarios).
type FixtureConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig controls internal/logging's output.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "text"
}

// CacheConfig controls the optional Redis-backed plan cache
// (internal/planner/planstore). Addr empty disables caching.
type CacheConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"-" yaml:"-"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns the configuration used when no environment
// variables or YAML file override it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  30,
			WriteTimeout: 30,
			DebugPort:    8081,
		},
		Engine: EngineConfig{
			VectorCapacity: 2048,
			SIPRatio:       0.1,
			BuildPenalty:   1.2,
			EqualitySel:    0.1,
			NonEqualitySel: 0.3,
			MaxLevelExact:  6,
			LoadFactor:     0.75,
			WorkerThreads:  4,
		},
		Catalog: CatalogConfig{
			Backend: "fixture",
			SQLite: SQLiteConfig{
				Path: "./data/graphflow.sqlite",
			},
			Postgres: PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Database:     "graphflow",
				User:         "graphflow",
				SSLMode:      "disable",
				MaxOpenConns: 16,
				MaxIdleConns: 4,
				QueryTimeout: 30 * time.Second,
			},
			Fixture: FixtureConfig{
				Path: "./internal/catalog/fixture/tinysnb.yaml",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			DB:  0,
			TTL: 10 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from a .env file (if present), then
// from an optional YAML file named by GRAPHFLOW_CONFIG_FILE, then from
// environment variables (which take final precedence), validating the
// result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := DefaultConfig()

	if path := os.Getenv("GRAPHFLOW_CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAMLFile decodes a YAML document into raw maps, then uses
// mapstructure to fill cfg so unknown keys in hand-edited fixture/config
// files don't hard-fail the decode.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func loadFromEnv(cfg *Config) {
	setIntFromEnv("GRAPHFLOW_PORT", &cfg.Server.Port)
	setStringFromEnv("GRAPHFLOW_HOST", &cfg.Server.Host)
	setIntFromEnv("GRAPHFLOW_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout)
	setIntFromEnv("GRAPHFLOW_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout)
	setIntFromEnv("GRAPHFLOW_DEBUG_PORT", &cfg.Server.DebugPort)

	setIntFromEnv("GRAPHFLOW_VECTOR_CAPACITY", &cfg.Engine.VectorCapacity)
	setFloatFromEnv("GRAPHFLOW_SIP_RATIO", &cfg.Engine.SIPRatio)
	setFloatFromEnv("GRAPHFLOW_BUILD_PENALTY", &cfg.Engine.BuildPenalty)
	setFloatFromEnv("GRAPHFLOW_EQUALITY_SEL", &cfg.Engine.EqualitySel)
	setFloatFromEnv("GRAPHFLOW_NON_EQUALITY_SEL", &cfg.Engine.NonEqualitySel)
	setIntFromEnv("GRAPHFLOW_MAX_LEVEL_EXACT", &cfg.Engine.MaxLevelExact)
	setFloatFromEnv("GRAPHFLOW_LOAD_FACTOR", &cfg.Engine.LoadFactor)
	setIntFromEnv("GRAPHFLOW_WORKER_THREADS", &cfg.Engine.WorkerThreads)

	setStringFromEnv("GRAPHFLOW_CATALOG_BACKEND", &cfg.Catalog.Backend)
	setStringFromEnv("GRAPHFLOW_SQLITE_PATH", &cfg.Catalog.SQLite.Path)
	setStringFromEnv("GRAPHFLOW_FIXTURE_PATH", &cfg.Catalog.Fixture.Path)
	setStringFromEnv("GRAPHFLOW_PG_HOST", &cfg.Catalog.Postgres.Host)
	setIntFromEnv("GRAPHFLOW_PG_PORT", &cfg.Catalog.Postgres.Port)
	setStringFromEnv("GRAPHFLOW_PG_DATABASE", &cfg.Catalog.Postgres.Database)
	setStringFromEnv("GRAPHFLOW_PG_USER", &cfg.Catalog.Postgres.User)
	setStringFromEnv("GRAPHFLOW_PG_PASSWORD", &cfg.Catalog.Postgres.Password)
	setStringFromEnv("GRAPHFLOW_PG_SSLMODE", &cfg.Catalog.Postgres.SSLMode)

	setStringFromEnv("GRAPHFLOW_LOG_LEVEL", &cfg.Logging.Level)
	setStringFromEnv("GRAPHFLOW_LOG_FORMAT", &cfg.Logging.Format)

	setStringFromEnv("GRAPHFLOW_CACHE_ADDR", &cfg.Cache.Addr)
	setStringFromEnv("GRAPHFLOW_CACHE_PASSWORD", &cfg.Cache.Password)
	setIntFromEnv("GRAPHFLOW_CACHE_DB", &cfg.Cache.DB)
}

func setStringFromEnv(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setIntFromEnv(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setFloatFromEnv(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	return c.validateCatalog()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return errors.New("server host cannot be empty")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.VectorCapacity <= 0 {
		return errors.New("vector capacity must be positive")
	}
	if c.Engine.LoadFactor <= 0 || c.Engine.LoadFactor >= 1 {
		return errors.New("load factor must be between 0 and 1")
	}
	if c.Engine.MaxLevelExact < 1 {
		return errors.New("max level exact must be at least 1")
	}
	if c.Engine.WorkerThreads <= 0 {
		return errors.New("worker threads must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Backend {
	case "sqlite":
		if c.Catalog.SQLite.Path == "" {
			return errors.New("sqlite catalog path cannot be empty")
		}
	case "postgres":
		if c.Catalog.Postgres.Host == "" {
			return errors.New("postgres host cannot be empty")
		}
		if c.Catalog.Postgres.Database == "" {
			return errors.New("postgres database cannot be empty")
		}
	case "fixture":
		if c.Catalog.Fixture.Path == "" {
			return errors.New("fixture path cannot be empty")
		}
	default:
		return fmt.Errorf("unknown catalog backend: %q", c.Catalog.Backend)
	}
	return nil
}

// DSN builds the lib/pq connection string for the Postgres backend.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
}
