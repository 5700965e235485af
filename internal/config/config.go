// Package config handles runtime configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by LoadFromEnv.
const (
	DefaultStackPath   = "stack.yaml"
	DefaultOutputDir   = "dashboards"
	DefaultParallelism = 4
	DefaultSampleRows  = 216
	DefaultListenAddr  = ":8080"
	DefaultRateLimit   = 20
	DefaultRateBurst   = 40
)

// Config holds the runtime configuration of the stack engine. The stack
// definition itself lives in YAML and is loaded by internal/declarative.
type Config struct {
	StackPath   string        // stack file or directory (default "stack.yaml")
	DBPath      string        // DuckDB database file; empty = in-memory
	OutputDir   string        // rendered dashboard directory (default "dashboards")
	LogLevel    string        // log level: debug, info, warn, error (default "info")
	LogFormat   string        // text or json (default "text")
	MetricsFile string        // Prometheus textfile written after each run (optional)
	Parallelism int           // concurrent source materializations (default 4)
	SampleRows  int           // rows generated for sources without a location (default 216)
	StepTimeout time.Duration // per collaborator call; 0 = none

	// Dashboard server
	ListenAddr     string  // HTTP listen address (default ":8080")
	RateLimitRPS   float64 // sustained API requests per second per client (default 20)
	RateLimitBurst int     // API burst size per client (default 40)

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JSONLogs reports whether logs should be emitted as JSON.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}

// InMemory returns true when no database file is configured.
func (c *Config) InMemory() bool {
	return c.DBPath == "" || c.DBPath == ":memory:"
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("SOURCE_PARALLELISM must be at least 1, got %d", c.Parallelism)
	}
	if c.SampleRows < 1 {
		return fmt.Errorf("SAMPLE_ROWS must be at least 1, got %d", c.SampleRows)
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("STEP_TIMEOUT must not be negative, got %s", c.StepTimeout)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("DUCKSTACK_OUTPUT_DIR must not be empty")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %g", c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables and applies
// defaults. Malformed numeric values fall back to the default and add a
// warning; the result is validated before it is returned.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		StackPath:   os.Getenv("DUCKSTACK_CONFIG"),
		DBPath:      os.Getenv("DUCKSTACK_DB_PATH"),
		OutputDir:   os.Getenv("DUCKSTACK_OUTPUT_DIR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		MetricsFile: os.Getenv("METRICS_FILE"),
		Parallelism: DefaultParallelism,
		SampleRows:  DefaultSampleRows,
		ListenAddr:  os.Getenv("DUCKSTACK_LISTEN_ADDR"),

		RateLimitRPS:   DefaultRateLimit,
		RateLimitBurst: DefaultRateBurst,
	}

	if v := os.Getenv("SOURCE_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallelism = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("SOURCE_PARALLELISM %q is not an integer, using %d", v, DefaultParallelism))
		}
	}
	if v := os.Getenv("SAMPLE_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleRows = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("SAMPLE_ROWS %q is not an integer, using %d", v, DefaultSampleRows))
		}
	}
	if v := os.Getenv("STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StepTimeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("STEP_TIMEOUT %q is not a duration, steps will not time out", v))
		}
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("RATE_LIMIT_RPS %q is not a number, using %d", v, DefaultRateLimit))
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("RATE_LIMIT_BURST %q is not an integer, using %d", v, DefaultRateBurst))
		}
	}

	// Defaults
	if cfg.StackPath == "" {
		cfg.StackPath = DefaultStackPath
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.InMemory() {
		cfg.Warnings = append(cfg.Warnings, "DUCKSTACK_DB_PATH not set, computed tables live in memory only")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
