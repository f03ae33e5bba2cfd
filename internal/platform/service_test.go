package platform

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	f := NewFetcher("http://127.0.0.1:1", "", zerolog.Nop())

	t.Run("should reject an invalid schedule", func(t *testing.T) {
		_, err := NewService(f, "not a schedule", zerolog.Nop(), nil)
		assert.Error(t, err)
	})

	t.Run("should accept a five-field cron expression", func(t *testing.T) {
		_, err := NewService(f, "0 */4 * * *", zerolog.Nop(), nil)
		assert.NoError(t, err)
	})
}

func TestServiceRefresh(t *testing.T) {
	t.Run("should expose the latest summary after start", func(t *testing.T) {
		srv := servePlatform(t, map[string]string{"rules.md": rulesDoc})
		f := NewFetcher(srv.URL, filepath.Join(t.TempDir(), "cache.json"), zerolog.Nop())

		var notified []Change
		svc, err := NewService(f, "0 */4 * * *", zerolog.Nop(), func(changes []Change) {
			notified = changes
		})
		require.NoError(t, err)

		svc.Start()
		defer svc.Stop()

		assert.Contains(t, svc.Latest(), "Rate Limits")
		assert.NotEmpty(t, notified)
	})

	t.Run("should serve fallback before any refresh", func(t *testing.T) {
		f := NewFetcher("http://127.0.0.1:1", "", zerolog.Nop())
		svc, err := NewService(f, "0 */4 * * *", zerolog.Nop(), nil)
		require.NoError(t, err)
		assert.Equal(t, FallbackRules, svc.Latest())
	})
}
