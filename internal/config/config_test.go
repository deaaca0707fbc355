package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("ASKDB_CONFIG", path)

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "public", cfg.Source.Schema)
	assert.Equal(t, "30s", cfg.Source.QueryTimeout)
	assert.Equal(t, 100, cfg.Source.MaxRows)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.InDelta(t, 0.85, cfg.Cache.SimilarityThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("ASKDB_SOURCE_DSN", "postgres://localhost/app")
	t.Setenv("ASKDB_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("ASKDB_CACHE_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("ASKDB_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Source.DSN)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.9, cfg.Cache.SimilarityThreshold, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := isolateConfig(t)

	fileConfig := map[string]interface{}{
		"source": map[string]interface{}{"dsn": "postgres://filehost/app"},
		"retry":  map[string]interface{}{"max_attempts": 4},
	}

	data, err := json.Marshal(fileConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://filehost/app", cfg.Source.DSN)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)

	// Untouched fields keep their defaults.
	assert.Equal(t, "public", cfg.Source.Schema)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	path := isolateConfig(t)

	data, err := json.Marshal(map[string]interface{}{
		"source": map[string]interface{}{"dsn": "postgres://filehost/app"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	t.Setenv("ASKDB_SOURCE_DSN", "postgres://envhost/app")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://envhost/app", cfg.Source.DSN)
}

func TestFlagOverridesBeatEverything(t *testing.T) {
	isolateConfig(t)
	t.Setenv("ASKDB_SOURCE_DSN", "postgres://envhost/app")

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{
		"dsn":          "postgres://flaghost/app",
		"max-attempts": 7,
		"threshold":    0.75,
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://flaghost/app", cfg.Source.DSN)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.75, cfg.Cache.SimilarityThreshold, 1e-9)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"bad query timeout", func(c *Config) { c.Source.QueryTimeout = "fast" }},
		{"bad llm timeout", func(c *Config) { c.LLM.Timeout = "soon" }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"threshold too high", func(c *Config) { c.Cache.SimilarityThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.Cache.SimilarityThreshold = 0 }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)

			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data.db"), expandPath("~/data.db"))
	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, "/var/lib/askdb.db", expandPath("/var/lib/askdb.db"))
	assert.Equal(t, "relative/path.db", expandPath("relative/path.db"))
}

func TestSaveAndReloadConfig(t *testing.T) {
	isolateConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Source.DSN = "postgres://saved/app"
	require.NoError(t, SaveConfig(cfg))

	reloaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://saved/app", reloaded.Source.DSN)
}
