// Package config holds the YAML configuration for the onecd CLI and the
// tunables it hands down to the decoder.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig holds logging-related configurations.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
	// Format selects the handler: "auto" picks a colored handler on a TTY
	// and plain text otherwise; "text" and "json" force one.
	Format string `yaml:"format"`
}

// CacheConfig holds cache-related configurations.
type CacheConfig struct {
	// BlobCacheCapacity is the number of resolved BLOB payloads kept per
	// open container. Negative disables the cache.
	BlobCacheCapacity int `yaml:"blob_cache_capacity"`
}

// ScannerConfig holds defaults for the fallback pattern scanner.
type ScannerConfig struct {
	ContextBytes int      `yaml:"context_bytes"`
	Markers      []string `yaml:"markers"` // default marker set for scan-markers
}

// StatsConfig holds defaults for the parallel stats sweep.
type StatsConfig struct {
	Workers int `yaml:"workers"`
}

// Config is the top-level configuration struct.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Scanner ScannerConfig `yaml:"scanner"`
	Stats   StatsConfig   `yaml:"stats"`
}

// Load reads configuration from an io.Reader. A nil reader yields defaults.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Cache: CacheConfig{
			BlobCacheCapacity: 128,
		},
		Scanner: ScannerConfig{
			ContextBytes: 32,
		},
		Stats: StatsConfig{
			Workers: 4,
		},
	}
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file is
// not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

func (c *Config) validate() error {
	switch c.Logging.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.Scanner.ContextBytes < 0 {
		return fmt.Errorf("scanner context_bytes must not be negative")
	}
	if c.Stats.Workers < 1 {
		return fmt.Errorf("stats workers must be at least 1")
	}
	return nil
}

// ParseLogLevel maps a config string to a slog level, defaulting to info and
// warning on unrecognized values.
func ParseLogLevel(level string, logger *slog.Logger) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if logger != nil {
			logger.Warn("unrecognized log level, using info", "input", level)
		}
		return slog.LevelInfo
	}
}
