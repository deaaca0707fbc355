package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Source    SourceConfig    `json:"source"`
	Store     StoreConfig     `json:"store"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Cache     CacheConfig     `json:"cache"`
	Retry     RetryConfig     `json:"retry"`
	Logging   LoggingConfig   `json:"logging"`
}

// SourceConfig describes the live database the questions are asked against
type SourceConfig struct {
	DSN          string `json:"dsn"           env:"SOURCE_DSN"`
	Schema       string `json:"schema"        env:"SOURCE_SCHEMA"        envDefault:"public"`
	QueryTimeout string `json:"query_timeout" env:"SOURCE_QUERY_TIMEOUT" envDefault:"30s"`
	MaxRows      int    `json:"max_rows"      env:"SOURCE_MAX_ROWS"      envDefault:"100"`
}

// StoreConfig describes the local DuckDB store backing the semantic cache
type StoreConfig struct {
	Path            string `json:"path"              env:"STORE_PATH"              envDefault:"~/.config/askdb/askdb.db"`
	MaxConnections  int    `json:"max_connections"   env:"STORE_MAX_CONNECTIONS"   envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"    env:"STORE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime" env:"STORE_CONN_MAX_LIFETIME" envDefault:"30m"`
	SnapshotPath    string `json:"snapshot_path"     env:"STORE_SNAPSHOT_PATH"     envDefault:"~/.config/askdb/schema_snapshot.json"`
}

// LLMConfig represents SQL-generation configuration
type LLMConfig struct {
	Provider  string `json:"provider"   env:"LLM_PROVIDER"   envDefault:"openai"` // openai, anthropic, ollama
	Model     string `json:"model"      env:"LLM_MODEL"      envDefault:"gpt-4o-mini"`
	APIKey    string `json:"api_key"    env:"LLM_API_KEY"`
	BaseURL   string `json:"base_url"   env:"LLM_BASE_URL"`
	Timeout   string `json:"timeout"    env:"LLM_TIMEOUT"    envDefault:"60s"`
	MaxTokens int    `json:"max_tokens" env:"LLM_MAX_TOKENS" envDefault:"1000"`
}

// EmbeddingConfig represents embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `json:"provider"   env:"EMBEDDING_PROVIDER"   envDefault:"local"` // local or remote
	Model      string `json:"model"      env:"EMBEDDING_MODEL"      envDefault:"text-embedding-3-small"`
	Dimensions int    `json:"dimensions" env:"EMBEDDING_DIMENSIONS" envDefault:"384"`
	APIKey     string `json:"api_key"    env:"EMBEDDING_API_KEY"`
	BaseURL    string `json:"base_url"   env:"EMBEDDING_BASE_URL"`
}

// CacheConfig represents semantic cache configuration
type CacheConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold" env:"CACHE_SIMILARITY_THRESHOLD" envDefault:"0.85"`
	Disabled            bool    `json:"disabled"             env:"CACHE_DISABLED"             envDefault:"false"`
}

// RetryConfig bounds the self-correcting generation loop
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts" env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stderr"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.config/askdb/logs/askdb.log"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := &Config{}

	// Load from config file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides (also sets defaults)
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "ASKDB_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "dsn":
			if str, ok := value.(string); ok && str != "" {
				config.Source.DSN = str
			}
		case "store-path":
			if str, ok := value.(string); ok && str != "" {
				config.Store.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "max-attempts":
			if n, ok := value.(int); ok && n > 0 {
				config.Retry.MaxAttempts = n
			}
		case "threshold":
			if f, ok := value.(float64); ok && f > 0 {
				config.Cache.SimilarityThreshold = f
			}
		}
	}
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := 0; i < s.NumField(); i++ {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	if _, err := time.ParseDuration(config.Source.QueryTimeout); err != nil {
		return fmt.Errorf("invalid source query timeout: %s", config.Source.QueryTimeout)
	}

	if _, err := time.ParseDuration(config.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid LLM timeout: %s", config.LLM.Timeout)
	}

	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1: %d", config.Retry.MaxAttempts)
	}

	if config.Cache.SimilarityThreshold <= 0 || config.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf(
			"cache similarity threshold must be in (0, 1]: %f",
			config.Cache.SimilarityThreshold,
		)
	}

	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Embedding.Dimensions)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("ASKDB_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "askdb", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Store.Path = expandPath(c.Store.Path)
	c.Store.SnapshotPath = expandPath(c.Store.SnapshotPath)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/askdb"
	}

	return filepath.Join(homeDir, ".config", "askdb")
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Store.Path),
		filepath.Dir(c.Store.SnapshotPath),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
