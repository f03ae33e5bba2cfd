// Package audit writes the security audit trail: one JSON object per
// line, append-only, consumed independently by the downstream log ETL.
// Existing field names and types are a stable interface; new event
// types may be added but nothing may be renamed.
package audit

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Event types written by the pipeline.
const (
	EventContentFlagged       = "content_flagged"
	EventAuthorBlocked        = "author_blocked"
	EventAuthorUnblocked      = "author_unblocked"
	EventBlockedAuthorContent = "blocked_author_content"

	// EventAPIError carries a "flagged" boolean rather than a separate
	// event name; the downstream ETL derives api_error_flagged from it.
	EventAPIError = "api_error"
)

// Event is one audit record. Fields holds the event-specific payload
// and is flattened into the JSON line next to timestamp and event.
type Event struct {
	Timestamp time.Time
	Event     string
	Fields    map[string]any
}

// Sink appends events to the audit log. Log never fails the caller:
// write problems degrade to a warning on the main logger. A nil *Sink
// is safe to log to and drops everything, which keeps tests and
// partially wired callers simple.
type Sink struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	file     *os.File
	fallback zerolog.Logger
	subsMu   sync.RWMutex
	subs     map[int]func(Event)
	nextSub  int
}

// NewSink opens (or creates) the audit log at path in append mode.
// When path is empty, events go to the fallback logger instead of a
// dedicated file.
func NewSink(path string, fallback zerolog.Logger) (*Sink, error) {
	s := &Sink{fallback: fallback, subs: make(map[int]func(Event))}

	if path == "" {
		s.logger = fallback
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s.file = file
	s.logger = zerolog.New(&failsafeWriter{w: file, warn: fallback})
	return s, nil
}

// failsafeWriter absorbs write failures (disk full, permissions) so an
// audit problem never propagates into the request that triggered it.
type failsafeWriter struct {
	w    *os.File
	warn zerolog.Logger
}

func (f *failsafeWriter) Write(p []byte) (int, error) {
	if _, err := f.w.Write(p); err != nil {
		f.warn.Warn().Err(err).Msg("Audit log write failed, event dropped")
	}
	return len(p), nil
}

// Log serializes the event to one JSON line and appends it. The event
// id is additive to the original schema and gives downstream consumers
// a dedup key that does not depend on the raw line.
func (s *Sink) Log(ev Event) {
	if s == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	id, err := gonanoid.New()
	if err != nil {
		id = ""
	}

	s.mu.Lock()
	entry := s.logger.Log().
		Time("timestamp", ev.Timestamp).
		Str("event", ev.Event)
	if id != "" {
		entry = entry.Str("event_id", id)
	}
	for k, v := range ev.Fields {
		entry = entry.Interface(k, v)
	}
	entry.Msg("")
	s.mu.Unlock()

	s.notify(ev)
}

// Subscribe registers a callback invoked for every logged event, used
// by the admin gateway's live audit tail. Returns an unsubscribe func.
func (s *Sink) Subscribe(fn func(Event)) func() {
	if s == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Sink) notify(ev Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, fn := range s.subs {
		fn(ev)
	}
}

// Close closes the underlying file, if any.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
