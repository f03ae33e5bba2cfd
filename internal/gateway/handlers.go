package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harun/moltguard/pkg/audit"
)

// handleScan runs an ad-hoc scan on operator-supplied text. Useful for
// testing rule packs before they go live.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	result := s.filter.ScanText(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, result)
}

// handleBlocklist lists the currently blocked authors.
func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"blocked": s.filter.Tracker().Blocked(),
	})
}

// handleUnblock removes one author from the blocklist.
func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Work from the escaped path so names containing %2F or literal
	// percent signs survive the round trip.
	author, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/api/blocklist/"))
	if err != nil || author == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "author is required"})
		return
	}

	if !s.filter.Tracker().Unblock(author) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "author is not blocked"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unblocked": author})
}

// handleFlags exposes the per-author flag counters, blocked or not.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flags": s.filter.Tracker().Flags(),
	})
}

// handleRateLimits reports in-window call counts per action.
func (s *Server) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter == nil {
		writeJSON(w, http.StatusOK, map[string]any{"actions": map[string]any{}})
		return
	}

	actions := make(map[string]any)
	for action, windows := range s.limiter.Windows() {
		counts := make([]map[string]any, 0, len(windows))
		for _, win := range windows {
			counts = append(counts, map[string]any{
				"window":    win.String(),
				"max_calls": win.MaxCalls,
				"pending":   s.limiter.Pending(action, win.Duration),
			})
		}
		actions[action] = counts
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// handlePlatformRules returns the latest condensed platform rules
// summary from the scheduled refresh.
func (s *Server) handlePlatformRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rules == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "platform rules refresh is disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.rules.Latest()})
}

// handleAuditTail streams audit events over a WebSocket as they are
// logged. Slow consumers get dropped rather than back-pressuring the
// pipeline.
func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Audit tail upgrade failed")
		return
	}

	events := make(chan audit.Event, 64)
	unsubscribe := s.filter.Sink().Subscribe(func(ev audit.Event) {
		select {
		case events <- ev:
		default:
			// drop for this consumer
		}
	})

	s.trackTail(conn)
	s.tailConns.Add(1)
	go func() {
		defer s.tailConns.Done()
		defer unsubscribe()
		defer s.untrackTail(conn)
		defer conn.Close()

		// Reader goroutine notices the client going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case ev := <-events:
				payload := map[string]any{
					"timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
					"event":     ev.Event,
				}
				for k, v := range ev.Fields {
					payload[k] = v
				}
				if err := conn.WriteJSON(payload); err != nil {
					return
				}
			}
		}
	}()
}
