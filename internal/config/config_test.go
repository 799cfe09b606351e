package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)

	assert.Equal(t, 2048, cfg.Engine.VectorCapacity)
	assert.Equal(t, 0.75, cfg.Engine.LoadFactor)
	assert.Equal(t, 6, cfg.Engine.MaxLevelExact)
	assert.True(t, cfg.Engine.WorkerThreads > 0)

	assert.Equal(t, "fixture", cfg.Catalog.Backend)
	assert.NotEmpty(t, cfg.Catalog.Fixture.Path)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"empty host", func(c *Config) { c.Server.Host = "" }, "server host cannot be empty"},
		{"zero vector capacity", func(c *Config) { c.Engine.VectorCapacity = 0 }, "vector capacity must be positive"},
		{"load factor too high", func(c *Config) { c.Engine.LoadFactor = 1.5 }, "load factor must be between 0 and 1"},
		{"zero worker threads", func(c *Config) { c.Engine.WorkerThreads = 0 }, "worker threads must be positive"},
		{"unknown catalog backend", func(c *Config) { c.Catalog.Backend = "bogus" }, "unknown catalog backend"},
		{"empty fixture path", func(c *Config) { c.Catalog.Fixture.Path = "" }, "fixture path cannot be empty"},
		{"empty sqlite path", func(c *Config) {
			c.Catalog.Backend = "sqlite"
			c.Catalog.SQLite.Path = ""
		}, "sqlite catalog path cannot be empty"},
		{"empty postgres host", func(c *Config) {
			c.Catalog.Backend = "postgres"
			c.Catalog.Postgres.Host = ""
		}, "postgres host cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	envVars := map[string]string{
		"GRAPHFLOW_PORT":             "9090",
		"GRAPHFLOW_HOST":             "0.0.0.0",
		"GRAPHFLOW_VECTOR_CAPACITY":  "4096",
		"GRAPHFLOW_CATALOG_BACKEND":  "sqlite",
		"GRAPHFLOW_SQLITE_PATH":      "/tmp/graphflow.sqlite",
		"GRAPHFLOW_LOG_LEVEL":        "debug",
		"GRAPHFLOW_LOG_FORMAT":       "text",
	}
	for k, v := range envVars {
		_ = os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			_ = os.Unsetenv(k)
		}
	}()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 4096, cfg.Engine.VectorCapacity)
	assert.Equal(t, "sqlite", cfg.Catalog.Backend)
	assert.Equal(t, "/tmp/graphflow.sqlite", cfg.Catalog.SQLite.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfigWithInvalidIntEnvVar(t *testing.T) {
	_ = os.Setenv("GRAPHFLOW_PORT", "not-a-number")
	defer func() { _ = os.Unsetenv("GRAPHFLOW_PORT") }()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	originalWd, _ := os.Getwd()
	tempDir := t.TempDir()
	_ = os.Chdir(tempDir)
	defer func() { _ = os.Chdir(originalWd) }()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadConfigFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphflow.yaml")
	yamlBody := "engine:\n  vector_capacity: 1024\n  worker_threads: 2\ncatalog:\n  backend: fixture\n  fixture:\n    path: ./fixtures/tiny.yaml\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	_ = os.Setenv("GRAPHFLOW_CONFIG_FILE", path)
	defer func() { _ = os.Unsetenv("GRAPHFLOW_CONFIG_FILE") }()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Engine.VectorCapacity)
	assert.Equal(t, 2, cfg.Engine.WorkerThreads)
	assert.Equal(t, "./fixtures/tiny.yaml", cfg.Catalog.Fixture.Path)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "graphflow", User: "u", Password: "p", SSLMode: "disable"}
	dsn := p.DSN()
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "dbname=graphflow")
}
