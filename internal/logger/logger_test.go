package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should write json lines to the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "moltguard.log")
		log, err := New(Config{Level: "debug", File: path})
		require.NoError(t, err)

		log.Info().Str("component", "filter").Msg("pipeline ready")
		require.NoError(t, log.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var line map[string]any
		require.NoError(t, json.Unmarshal(data, &line))
		assert.Equal(t, "pipeline ready", line["message"])
		assert.Equal(t, "filter", line["component"])
		assert.NotEmpty(t, line["time"])
	})

	t.Run("should default to info on an unknown level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "moltguard.log")
		log, err := New(Config{Level: "chatty", File: path})
		require.NoError(t, err)
		defer log.Close()

		log.Debug().Msg("below the floor")
		log.Info().Msg("at the floor")
		require.NoError(t, log.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "below the floor")
		assert.Contains(t, string(data), "at the floor")
	})

	t.Run("should redact secrets in the file sink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "moltguard.log")
		log, err := New(Config{Level: "info", File: path, Redaction: true})
		require.NoError(t, err)

		log.Warn().Str("detail", "leaked sk-ant-REDACTED").Msg("classifier call failed")
		require.NoError(t, log.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "[REDACTED]")
		assert.NotContains(t, string(data), "sk-ant-api03")
	})

	t.Run("should work without a file", func(t *testing.T) {
		log, err := New(Config{Level: "error", Console: true})
		require.NoError(t, err)
		assert.NoError(t, log.Close())
	})

	t.Run("child logger keeps its context", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "moltguard.log")
		log, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)

		child := log.With().Str("author", "crab_whisperer").Logger()
		child.Info().Msg("flag recorded")
		require.NoError(t, log.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"author":"crab_whisperer"`)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Redaction)
	assert.Positive(t, cfg.MaxSize)
}
