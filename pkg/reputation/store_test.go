package reputation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	t.Run("should round-trip entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blocklist.json")
		store := NewStore(path, zerolog.Nop())

		expires := "2026-01-16T01:00:00Z"
		entries := map[string]BlockEntry{
			"BadBot1": {BlockedAt: "2026-01-15T00:00:00Z", Reason: "threshold exceeded", FlagCount: 5},
			"BadBot2": {BlockedAt: "2026-01-15T01:00:00Z", ExpiresAt: &expires, Reason: "threshold exceeded", FlagCount: 3},
		}
		require.NoError(t, store.Save(entries))

		loaded := store.Load()
		require.Len(t, loaded, 2)
		assert.Equal(t, 5, loaded["BadBot1"].FlagCount)
		assert.Nil(t, loaded["BadBot1"].ExpiresAt)
		require.NotNil(t, loaded["BadBot2"].ExpiresAt)
		assert.Equal(t, expires, *loaded["BadBot2"].ExpiresAt)
	})

	t.Run("should write the documented JSON shape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blocklist.json")
		store := NewStore(path, zerolog.Nop())
		require.NoError(t, store.Save(map[string]BlockEntry{
			"BadBot": {BlockedAt: "2026-01-15T00:00:00Z", Reason: "threshold exceeded", FlagCount: 3},
		}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))

		entry := doc["BadBot"]
		assert.Contains(t, entry, "blocked_at")
		assert.Contains(t, entry, "expires_at")
		assert.Contains(t, entry, "reason")
		assert.Contains(t, entry, "flag_count")
		assert.Nil(t, entry["expires_at"])
	})

	t.Run("should load empty from a missing file", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())
		assert.Empty(t, store.Load())
	})

	t.Run("should load empty from a corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("not valid json {{{"), 0644))

		store := NewStore(path, zerolog.Nop())
		assert.Empty(t, store.Load())
	})

	t.Run("should leave no temp file behind", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(filepath.Join(dir, "blocklist.json"), zerolog.Nop())
		require.NoError(t, store.Save(map[string]BlockEntry{}))

		_, err := os.Stat(filepath.Join(dir, "blocklist.json.tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("should no-op with an empty path", func(t *testing.T) {
		store := NewStore("", zerolog.Nop())
		assert.NoError(t, store.Save(map[string]BlockEntry{"X": {}}))
		assert.Empty(t, store.Load())
	})
}
