// Package reputation tracks per-author injection flags and escalates
// repeat offenders into a durable, optionally time-bounded blocklist.
//
// Each author moves through a small state machine: Unflagged →
// Flagged(n) → Blocked. The only transitions are RecordFlag (which can
// cross the block threshold), Unblock, and the lazy TTL reclaim inside
// IsBlocked.
package reputation

import (
	"sync"
	"time"

	"github.com/harun/moltguard/pkg/audit"
	"github.com/rs/zerolog"
)

// UnknownAuthor is the sentinel for content whose author could not be
// resolved. It is never flagged and never blocked.
const UnknownAuthor = "unknown"

// recentFlagCap bounds the per-author history ring.
const recentFlagCap = 10

// FlagEvent is one flagged-content occurrence for an author.
type FlagEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Flags     []string  `json:"flags"`
}

// FlagRecord accumulates an author's offence history. In-memory only;
// reset on restart. Only the blocklist itself is durable.
type FlagRecord struct {
	Count        int         `json:"count"`
	FirstFlagged time.Time   `json:"first_flagged"`
	LastFlagged  time.Time   `json:"last_flagged"`
	RecentFlags  []FlagEvent `json:"recent_flags"`
}

// Config controls escalation.
type Config struct {
	// Threshold is the flag count at which an author is auto-blocked.
	Threshold int
	// BlockDuration bounds a block in time. Zero means permanent.
	BlockDuration time.Duration
}

// Tracker is the reputation subsystem. All state behind one mutex;
// blocklist mutations persist write-through via the Store, with file
// I/O performed on a snapshot outside the lock.
type Tracker struct {
	mu      sync.Mutex
	cfg     Config
	flags   map[string]*FlagRecord
	blocked map[string]BlockEntry
	store   *Store
	sink    *audit.Sink
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTracker loads the blocklist from the store and returns a ready
// tracker.
func NewTracker(cfg Config, store *Store, sink *audit.Sink, logger zerolog.Logger) *Tracker {
	return &Tracker{
		cfg:     cfg,
		flags:   make(map[string]*FlagRecord),
		blocked: store.Load(),
		store:   store,
		sink:    sink,
		logger:  logger.With().Str("component", "reputation").Logger(),
		now:     time.Now,
	}
}

// RecordFlag records that author posted flagged content. A no-op for
// empty or unknown authors. Crossing the threshold while not already
// blocked creates the block entry, persists it, and emits an
// author_blocked audit event.
func (t *Tracker) RecordFlag(author string, flags []string) {
	if author == "" || author == UnknownAuthor {
		return
	}

	t.mu.Lock()
	now := t.now().UTC()

	rec, ok := t.flags[author]
	if !ok {
		rec = &FlagRecord{FirstFlagged: now}
		t.flags[author] = rec
	}
	rec.Count++
	rec.LastFlagged = now
	rec.RecentFlags = append(rec.RecentFlags, FlagEvent{Timestamp: now, Flags: flags})
	if len(rec.RecentFlags) > recentFlagCap {
		rec.RecentFlags = rec.RecentFlags[len(rec.RecentFlags)-recentFlagCap:]
	}

	t.logger.Info().
		Str("author", author).
		Int("count", rec.Count).
		Int("threshold", t.cfg.Threshold).
		Msg("Author flag recorded")

	_, alreadyBlocked := t.blocked[author]
	if rec.Count < t.cfg.Threshold || alreadyBlocked {
		t.mu.Unlock()
		return
	}

	entry := BlockEntry{
		BlockedAt: now.Format(time.RFC3339),
		Reason:    "threshold exceeded",
		FlagCount: rec.Count,
	}
	duration := "permanent"
	if t.cfg.BlockDuration > 0 {
		expires := now.Add(t.cfg.BlockDuration).Format(time.RFC3339)
		entry.ExpiresAt = &expires
		duration = t.cfg.BlockDuration.String()
	}
	t.blocked[author] = entry
	snapshot := t.snapshotLocked()
	recent := append([]FlagEvent(nil), rec.RecentFlags...)
	t.mu.Unlock()

	t.save(snapshot)
	t.logger.Warn().
		Str("author", author).
		Str("duration", duration).
		Msg("Author auto-blocked, flag threshold exceeded")

	t.sink.Log(audit.Event{
		Timestamp: now,
		Event:     audit.EventAuthorBlocked,
		Fields: map[string]any{
			"author":       author,
			"flag_count":   entry.FlagCount,
			"threshold":    t.cfg.Threshold,
			"duration":     duration,
			"recent_flags": recent,
		},
	})
}

// IsBlocked reports whether author is currently blocked. This is the
// documented check-and-reclaim operation: an entry whose TTL has passed
// is removed here, the removal is persisted, and false is returned. A
// malformed expiry timestamp fails closed and keeps the author blocked.
func (t *Tracker) IsBlocked(author string) bool {
	if author == "" || author == UnknownAuthor {
		return false
	}

	t.mu.Lock()
	entry, ok := t.blocked[author]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if entry.ExpiresAt == nil || *entry.ExpiresAt == "" {
		t.mu.Unlock()
		return true
	}

	expiry, err := time.Parse(time.RFC3339, *entry.ExpiresAt)
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn().
			Str("author", author).
			Str("expires_at", *entry.ExpiresAt).
			Msg("Malformed block expiry, treating as permanent")
		return true
	}
	now := t.now().UTC()
	if now.Before(expiry) {
		t.mu.Unlock()
		return true
	}

	delete(t.blocked, author)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.save(snapshot)
	t.logger.Info().Str("author", author).Msg("Author block expired")
	t.sink.Log(audit.Event{
		Timestamp: now,
		Event:     audit.EventAuthorUnblocked,
		Fields:    map[string]any{"author": author, "method": "expired"},
	})
	return false
}

// Unblock manually removes an author's block entry and flag record,
// returning false when the author was not blocked. The flag counter
// resets to zero, so a single subsequent flag does not re-block.
func (t *Tracker) Unblock(author string) bool {
	t.mu.Lock()
	if _, ok := t.blocked[author]; !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.blocked, author)
	delete(t.flags, author)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.save(snapshot)
	t.logger.Info().Str("author", author).Msg("Author manually unblocked")
	t.sink.Log(audit.Event{
		Event:  audit.EventAuthorUnblocked,
		Fields: map[string]any{"author": author, "method": "manual"},
	})
	return true
}

// Blocked returns a copy of the current blocklist.
func (t *Tracker) Blocked() map[string]BlockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Flags returns a copy of the current author flag records.
func (t *Tracker) Flags() map[string]FlagRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]FlagRecord, len(t.flags))
	for author, rec := range t.flags {
		cp := *rec
		cp.RecentFlags = append([]FlagEvent(nil), rec.RecentFlags...)
		out[author] = cp
	}
	return out
}

func (t *Tracker) snapshotLocked() map[string]BlockEntry {
	out := make(map[string]BlockEntry, len(t.blocked))
	for author, entry := range t.blocked {
		out[author] = entry
	}
	return out
}

// save persists a snapshot taken under the lock. Runs outside the lock
// so disk latency never blocks other readers; a failure is logged and
// the in-memory state remains authoritative.
func (t *Tracker) save(snapshot map[string]BlockEntry) {
	if err := t.store.Save(snapshot); err != nil {
		t.logger.Error().Err(err).Msg("Failed to persist blocklist")
	}
}
