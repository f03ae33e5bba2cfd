// Package ratelimit guards outbound write actions with per-action
// multi-window sliding limits, mirroring the platform's posted rules
// (one post per 30 minutes; one comment per 20 seconds and at most 50
// per day).
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Window is one (maxCalls, duration) policy on an action. An action may
// carry several windows; all are enforced simultaneously.
type Window struct {
	MaxCalls int
	Duration time.Duration
}

func (w Window) String() string {
	return fmt.Sprintf("%d per %s", w.MaxCalls, w.Duration)
}

// LimitError is the expected, recoverable rejection returned when an
// action is over one of its windows. It names the offending window and
// carries a retry-after hint for the user-facing message.
type LimitError struct {
	Action     string
	Window     Window
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf(
		"rate limit exceeded for %q (%s); try again in %s",
		e.Action, e.Window, e.RetryAfter.Round(time.Second),
	)
}

// Limiter counts action timestamps against sliding windows. One
// timestamp history is shared by all windows of an action and pruned to
// the action's largest window. Check is atomic: the read-then-append
// sequence runs as one critical section, so two concurrent callers can
// never both take the last remaining slot. State is in-memory only and
// resets on restart.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]Window
	history map[string][]time.Time
	now     func() time.Time
}

// New creates a limiter from an action→windows policy map.
func New(windows map[string][]Window) *Limiter {
	policies := make(map[string][]Window, len(windows))
	for action, ws := range windows {
		policies[action] = append([]Window(nil), ws...)
	}
	return &Limiter{
		windows: policies,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// DefaultWindows returns the platform's published limits for outbound
// write actions.
func DefaultWindows() map[string][]Window {
	return map[string][]Window{
		"post": {
			{MaxCalls: 1, Duration: 30 * time.Minute},
		},
		"comment": {
			{MaxCalls: 1, Duration: 20 * time.Second},
			{MaxCalls: 50, Duration: 24 * time.Hour},
		},
		"vote": {
			{MaxCalls: 30, Duration: time.Minute},
		},
		"subscribe": {
			{MaxCalls: 10, Duration: time.Hour},
		},
	}
}

// Check records one call of action if every configured window still has
// room, or returns a *LimitError with zero side effects when any window
// is at its cap. Actions with no configured windows always succeed.
func (l *Limiter) Check(action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	windows, ok := l.windows[action]
	if !ok || len(windows) == 0 {
		return nil
	}

	now := l.now()
	history := l.history[action]

	var largest time.Duration
	for _, w := range windows {
		if w.Duration > largest {
			largest = w.Duration
		}

		count := 0
		cutoff := now.Add(-w.Duration)
		for _, ts := range history {
			if ts.After(cutoff) {
				count++
			}
		}
		if count >= w.MaxCalls {
			return &LimitError{
				Action:     action,
				Window:     w,
				RetryAfter: retryAfter(history, cutoff, w, now),
			}
		}
	}

	// All windows passed: prune to the largest window, then record.
	cutoff := now.Add(-largest)
	kept := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.history[action] = append(kept, now)
	return nil
}

// retryAfter estimates when the oldest in-window call ages out.
func retryAfter(history []time.Time, cutoff time.Time, w Window, now time.Time) time.Duration {
	var oldest time.Time
	for _, ts := range history {
		if ts.After(cutoff) && (oldest.IsZero() || ts.Before(oldest)) {
			oldest = ts
		}
	}
	if oldest.IsZero() {
		return w.Duration
	}
	wait := oldest.Add(w.Duration).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Windows returns a copy of the configured action→windows policy map.
func (l *Limiter) Windows() map[string][]Window {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string][]Window, len(l.windows))
	for action, ws := range l.windows {
		out[action] = append([]Window(nil), ws...)
	}
	return out
}

// Pending returns how many calls of action are currently inside the
// given window. Used by the admin surface; not part of the enforcement
// path.
func (l *Limiter) Pending(action string, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	count := 0
	for _, ts := range l.history[action] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
