// Package config provides configuration management for the experiment
// pipeline. It loads settings from environment variables with the CONSTRUCT_
// prefix and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for the pipeline binaries.
type Config struct {
	Experiment ExperimentConfig
	Providers  ProvidersConfig
	Retry      RetryConfig
	Storage    StorageConfig
	Analysis   AnalysisConfig
}

// ExperimentConfig contains collection-run settings.
type ExperimentConfig struct {
	Architectures    []string // Architectures to run, comma-separated in env (default: anthropic)
	Conditions       []string // Condition labels to run (default: the four standard conditions)
	QueryCount       int      // Queries per cell; 0 means the full template (default: 0)
	QueriesPerSecond float64  // Pacing limit across provider calls (default: 0.5)
	MemoryWindow     int      // Exchanges kept in rendered context; 0 = unbounded (default: 0)
	TemplatePath     string   // Query template YAML; empty uses the built-in template
}

// ProvidersConfig contains per-provider credentials and model selection.
type ProvidersConfig struct {
	AnthropicAPIKey string // Anthropic API key
	AnthropicModel  string // Anthropic model name (default: claude-sonnet-4-20250514)
	OpenAIAPIKey    string // OpenAI API key
	OpenAIModel     string // OpenAI model name (default: gpt-4o)
	GeminiAPIKey    string // Gemini API key
	GeminiModel     string // Gemini model name (default: gemini-2.5-flash)
	MaxTokens       int    // Max output tokens per response (default: 1000)
	RequestTimeout  time.Duration // Per-request timeout (default: 60s)
}

// RetryConfig contains retry settings for provider calls.
type RetryConfig struct {
	MaxAttempts    int           // Attempts per query before a sentinel failure (default: 3)
	InitialBackoff time.Duration // First backoff delay (default: 2s)
	BackoffFactor  float64       // Backoff multiplier between attempts (default: 2.0)
}

// StorageConfig contains run-file and archive settings.
type StorageConfig struct {
	DataPath      string // Directory for run files (default: ./data)
	ArchiveEngine string // Archive backend: none, sqlite, postgres (default: none)
	SQLitePath    string // SQLite archive path (default: ./data/archive.db)
	PostgresDSN   string // PostgreSQL connection string
}

// AnalysisConfig contains analysis settings.
type AnalysisConfig struct {
	LexiconPath     string // Lexicon YAML; empty uses the built-in seed lexicon
	BaselineLabel   string // Reference condition for comparisons (default: baseline)
	ComparisonLabel string // Condition compared against the baseline (default: full_meta)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the CONSTRUCT_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Experiment: ExperimentConfig{
			Architectures:    getEnvList("CONSTRUCT_ARCHITECTURES", []string{"anthropic"}),
			Conditions:       getEnvList("CONSTRUCT_CONDITIONS", []string{"baseline", "memory_only", "full_basic", "full_meta"}),
			QueryCount:       getEnvInt("CONSTRUCT_QUERY_COUNT", 0),
			QueriesPerSecond: getEnvFloat("CONSTRUCT_QUERIES_PER_SECOND", 0.5),
			MemoryWindow:     getEnvInt("CONSTRUCT_MEMORY_WINDOW", 0),
			TemplatePath:     getEnv("CONSTRUCT_TEMPLATE_PATH", ""),
		},
		Providers: ProvidersConfig{
			AnthropicAPIKey: getEnv("CONSTRUCT_ANTHROPIC_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
			AnthropicModel:  getEnv("CONSTRUCT_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OpenAIAPIKey:    getEnv("CONSTRUCT_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:     getEnv("CONSTRUCT_OPENAI_MODEL", "gpt-4o"),
			GeminiAPIKey:    getEnv("CONSTRUCT_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
			GeminiModel:     getEnv("CONSTRUCT_GEMINI_MODEL", "gemini-2.5-flash"),
			MaxTokens:       getEnvInt("CONSTRUCT_MAX_TOKENS", 1000),
			RequestTimeout:  getEnvDuration("CONSTRUCT_REQUEST_TIMEOUT", 60*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvInt("CONSTRUCT_RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("CONSTRUCT_RETRY_INITIAL_BACKOFF", 2*time.Second),
			BackoffFactor:  getEnvFloat("CONSTRUCT_RETRY_BACKOFF_FACTOR", 2.0),
		},
		Storage: StorageConfig{
			DataPath:      getEnv("CONSTRUCT_DATA_PATH", "./data"),
			ArchiveEngine: getEnv("CONSTRUCT_ARCHIVE_ENGINE", "none"),
			SQLitePath:    getEnv("CONSTRUCT_SQLITE_PATH", "./data/archive.db"),
			PostgresDSN:   getEnv("CONSTRUCT_POSTGRES_DSN", ""),
		},
		Analysis: AnalysisConfig{
			LexiconPath:     getEnv("CONSTRUCT_LEXICON_PATH", ""),
			BaselineLabel:   getEnv("CONSTRUCT_BASELINE_LABEL", "baseline"),
			ComparisonLabel: getEnv("CONSTRUCT_COMPARISON_LABEL", "full_meta"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the per-field defaults cannot.
func (c *Config) Validate() error {
	if len(c.Experiment.Architectures) == 0 {
		return fmt.Errorf("config: at least one architecture is required")
	}
	if len(c.Experiment.Conditions) == 0 {
		return fmt.Errorf("config: at least one condition is required")
	}
	if c.Experiment.QueriesPerSecond < 0 {
		return fmt.Errorf("config: queries per second must not be negative")
	}
	switch c.Storage.ArchiveEngine {
	case "none", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: CONSTRUCT_POSTGRES_DSN is required with the postgres archive engine")
		}
	default:
		return fmt.Errorf("config: unknown archive engine %q", c.Storage.ArchiveEngine)
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "30s", "2m")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice,
// trimming whitespace and dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
