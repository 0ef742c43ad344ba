package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Equal(t, 128, cfg.Cache.BlobCacheCapacity)
	assert.Equal(t, 32, cfg.Scanner.ContextBytes)
	assert.Equal(t, 4, cfg.Stats.Workers)
}

func TestLoadOverrides(t *testing.T) {
	yaml := `
logging:
  level: debug
  format: json
cache:
  blob_cache_capacity: 16
scanner:
  context_bytes: 8
  markers: ["_DOCUMENT", "_REFERENCE"]
stats:
  workers: 2
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 16, cfg.Cache.BlobCacheCapacity)
	assert.Equal(t, []string{"_DOCUMENT", "_REFERENCE"}, cfg.Scanner.Markers)
	assert.Equal(t, 2, cfg.Stats.Workers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(strings.NewReader("logging:\n  format: fancy\n"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("stats:\n  workers: 0\n"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("scanner:\n  context_bytes: -1\n"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("not yaml: ["))
	assert.Error(t, err)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/onecd.yaml")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug", nil))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("", nil))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning", nil))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error", nil))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("loud", slog.Default()))
}
