package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultReadTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultFetchAttempts   = 3
	DefaultFetchTimeout    = 10 * time.Second
	DefaultThresholdMs     = 180.0
	DefaultLogLevel        = "info"
	DefaultAllowedOrigin   = "*"
)

// Config holds the full server configuration parsed from config.yaml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket stream and /metrics
	// listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Stream    StreamConfig    `yaml:"stream"`
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	// AllowedOrigins defaults to ["*"].
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig configures the global request token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket size. Defaults to max(1, RequestsPerSecond).
	Burst int `yaml:"burst"`
}

// Enabled reports whether rate limiting is on.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerSecond > 0
}

// EffectiveBurst returns the configured burst, or a sensible default.
func (r RateLimitConfig) EffectiveBurst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	if r.RequestsPerSecond < 1 {
		return 1
	}
	return int(r.RequestsPerSecond)
}

// StreamConfig toggles the WebSocket query stream.
type StreamConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether /ws/latency is served.
func (s StreamConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DatasetConfig describes the telemetry dataset loaded at startup.
type DatasetConfig struct {
	// Path is a file path or http(s) URL. Required. ${VAR} references are
	// expanded from the environment.
	Path string `yaml:"path"`

	// Format is json | parquet | prom; empty infers it from Path.
	Format string `yaml:"format"`

	// FetchAttempts and FetchTimeout bound remote downloads.
	FetchAttempts int           `yaml:"fetch_attempts"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// AggregatorConfig holds query defaults.
type AggregatorConfig struct {
	// DefaultThresholdMs applies when a request omits threshold_ms (default 180).
	DefaultThresholdMs float64 `yaml:"default_threshold_ms"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel maps Level to a slog.Level. Validation guarantees it is known.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.Dataset.Path = os.ExpandEnv(cfg.Dataset.Path)
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{DefaultAllowedOrigin}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Dataset: DatasetConfig{
			FetchAttempts: DefaultFetchAttempts,
			FetchTimeout:  DefaultFetchTimeout,
		},
		Aggregator: AggregatorConfig{
			DefaultThresholdMs: DefaultThresholdMs,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if cfg.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}
	if cfg.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rate_limit.burst must not be negative")
	}
	if cfg.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	switch cfg.Dataset.Format {
	case "json", "parquet", "prom", "":
	default:
		return fmt.Errorf("dataset.format %q unknown: want json|parquet|prom", cfg.Dataset.Format)
	}
	if cfg.Dataset.FetchAttempts <= 0 {
		return fmt.Errorf("dataset.fetch_attempts must be positive")
	}
	if cfg.Dataset.FetchTimeout <= 0 {
		return fmt.Errorf("dataset.fetch_timeout must be positive")
	}
	if cfg.Aggregator.DefaultThresholdMs < 0 {
		return fmt.Errorf("aggregator.default_threshold_ms must not be negative")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}
