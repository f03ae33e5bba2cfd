package reputation

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/moltguard/pkg/audit"
)

func newTestTracker(t *testing.T, cfg Config) (*Tracker, *audit.Sink) {
	t.Helper()
	if cfg.Threshold == 0 {
		cfg.Threshold = 3
	}
	store := NewStore(filepath.Join(t.TempDir(), "blocklist.json"), zerolog.Nop())
	sink, err := audit.NewSink("", zerolog.Nop())
	require.NoError(t, err)
	return NewTracker(cfg, store, sink, zerolog.Nop()), sink
}

func TestTracker_RecordFlag(t *testing.T) {
	t.Run("should increment the counter per call", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{})

		tracker.RecordFlag("BadBot", []string{"test-flag"})
		tracker.RecordFlag("BadBot", []string{"another-flag"})

		flags := tracker.Flags()
		require.Contains(t, flags, "BadBot")
		assert.Equal(t, 2, flags["BadBot"].Count)
		assert.Len(t, flags["BadBot"].RecentFlags, 2)
	})

	t.Run("should ignore empty and unknown authors", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{})

		tracker.RecordFlag("", []string{"flag"})
		tracker.RecordFlag(UnknownAuthor, []string{"flag"})

		assert.Empty(t, tracker.Flags())
		assert.False(t, tracker.IsBlocked(""))
		assert.False(t, tracker.IsBlocked(UnknownAuthor))
	})

	t.Run("should cap recent flags at ten", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 100})

		for i := 0; i < 15; i++ {
			tracker.RecordFlag("ChattyBot", []string{fmt.Sprintf("flag-%d", i)})
		}

		rec := tracker.Flags()["ChattyBot"]
		assert.Equal(t, 15, rec.Count)
		require.Len(t, rec.RecentFlags, 10)
		assert.Equal(t, []string{"flag-5"}, rec.RecentFlags[0].Flags)
		assert.Equal(t, []string{"flag-14"}, rec.RecentFlags[9].Flags)
	})
}

func TestTracker_Blocking(t *testing.T) {
	t.Run("should block exactly at the threshold", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 3})

		tracker.RecordFlag("SpamBot", []string{"flag-0"})
		tracker.RecordFlag("SpamBot", []string{"flag-1"})
		assert.False(t, tracker.IsBlocked("SpamBot"))

		tracker.RecordFlag("SpamBot", []string{"flag-2"})
		assert.True(t, tracker.IsBlocked("SpamBot"))
		assert.Contains(t, tracker.Blocked(), "SpamBot")
	})

	t.Run("should stay blocked on further flags without duplicating the entry", func(t *testing.T) {
		tracker, sink := newTestTracker(t, Config{Threshold: 2})

		var blockEvents int
		unsub := sink.Subscribe(func(ev audit.Event) {
			if ev.Event == audit.EventAuthorBlocked {
				blockEvents++
			}
		})
		defer unsub()

		for i := 0; i < 5; i++ {
			tracker.RecordFlag("PersistentBot", []string{"flag"})
		}

		assert.True(t, tracker.IsBlocked("PersistentBot"))
		assert.Equal(t, 1, blockEvents)
	})

	t.Run("should emit an author_blocked audit event", func(t *testing.T) {
		tracker, sink := newTestTracker(t, Config{Threshold: 1})

		var events []audit.Event
		unsub := sink.Subscribe(func(ev audit.Event) { events = append(events, ev) })
		defer unsub()

		tracker.RecordFlag("OneStrike", []string{"rule hard-block: credential_exfiltration"})

		require.Len(t, events, 1)
		assert.Equal(t, audit.EventAuthorBlocked, events[0].Event)
		assert.Equal(t, "OneStrike", events[0].Fields["author"])
		assert.Equal(t, 1, events[0].Fields["flag_count"])
	})
}

func TestTracker_TTL(t *testing.T) {
	t.Run("should expire a time-bounded block lazily", func(t *testing.T) {
		tracker, sink := newTestTracker(t, Config{Threshold: 1, BlockDuration: time.Hour})
		base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		current := base
		tracker.now = func() time.Time { return current }

		var unblocks []audit.Event
		unsub := sink.Subscribe(func(ev audit.Event) {
			if ev.Event == audit.EventAuthorUnblocked {
				unblocks = append(unblocks, ev)
			}
		})
		defer unsub()

		tracker.RecordFlag("TempBad", []string{"flag"})
		assert.True(t, tracker.IsBlocked("TempBad"))

		current = base.Add(2 * time.Hour)
		assert.False(t, tracker.IsBlocked("TempBad"))
		assert.NotContains(t, tracker.Blocked(), "TempBad")

		require.Len(t, unblocks, 1)
		assert.Equal(t, "expired", unblocks[0].Fields["method"])
	})

	t.Run("should fail closed on a malformed expiry", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 1})
		garbage := "not-a-timestamp"
		tracker.mu.Lock()
		tracker.blocked["Corrupt"] = BlockEntry{
			BlockedAt: "2026-01-01T00:00:00Z",
			ExpiresAt: &garbage,
			Reason:    "threshold exceeded",
			FlagCount: 3,
		}
		tracker.mu.Unlock()

		assert.True(t, tracker.IsBlocked("Corrupt"))
		assert.True(t, tracker.IsBlocked("Corrupt"))
	})

	t.Run("should treat nil expiry as permanent", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 1, BlockDuration: 0})
		current := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		tracker.now = func() time.Time { return current }

		tracker.RecordFlag("Permanent", []string{"flag"})
		require.True(t, tracker.IsBlocked("Permanent"))

		current = current.AddDate(10, 0, 0)
		assert.True(t, tracker.IsBlocked("Permanent"))
	})
}

func TestTracker_Unblock(t *testing.T) {
	t.Run("should reset the flag counter so one flag does not re-block", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 3})

		for i := 0; i < 3; i++ {
			tracker.RecordFlag("Reformed", []string{"flag"})
		}
		require.True(t, tracker.IsBlocked("Reformed"))

		assert.True(t, tracker.Unblock("Reformed"))
		assert.False(t, tracker.IsBlocked("Reformed"))
		assert.NotContains(t, tracker.Flags(), "Reformed")

		tracker.RecordFlag("Reformed", []string{"flag"})
		assert.False(t, tracker.IsBlocked("Reformed"))
		assert.Equal(t, 1, tracker.Flags()["Reformed"].Count)
	})

	t.Run("should return false for an author who is not blocked", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{})
		assert.False(t, tracker.Unblock("NeverBlocked"))
	})
}

func TestTracker_Persistence(t *testing.T) {
	t.Run("should survive a restart via the store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blocklist.json")
		sink, err := audit.NewSink("", zerolog.Nop())
		require.NoError(t, err)

		first := NewTracker(Config{Threshold: 1}, NewStore(path, zerolog.Nop()), sink, zerolog.Nop())
		first.RecordFlag("Durable", []string{"flag"})
		require.True(t, first.IsBlocked("Durable"))

		second := NewTracker(Config{Threshold: 1}, NewStore(path, zerolog.Nop()), sink, zerolog.Nop())
		assert.True(t, second.IsBlocked("Durable"))
	})
}

func TestTracker_SnapshotIsolation(t *testing.T) {
	t.Run("should return copies from Blocked and Flags", func(t *testing.T) {
		tracker, _ := newTestTracker(t, Config{Threshold: 1})
		tracker.RecordFlag("Someone", []string{"flag"})

		blocked := tracker.Blocked()
		blocked["Injected"] = BlockEntry{}
		assert.NotContains(t, tracker.Blocked(), "Injected")

		flags := tracker.Flags()
		rec := flags["Someone"]
		rec.Count = 99
		flags["Someone"] = rec
		assert.Equal(t, 1, tracker.Flags()["Someone"].Count)
	})
}
