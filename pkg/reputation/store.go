package reputation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// BlockEntry is one blocked author in the durable blocklist. The JSON
// field names are a stable interface shared with the dashboard and the
// log ETL. ExpiresAt stays a raw string so a corrupt timestamp can be
// detected at check time and treated as still-blocked rather than
// silently discarding the entry at load.
type BlockEntry struct {
	BlockedAt string  `json:"blocked_at"`
	ExpiresAt *string `json:"expires_at"`
	Reason    string  `json:"reason"`
	FlagCount int     `json:"flag_count"`
}

// Store persists the blocklist as a JSON object keyed by author name.
// Load tolerates missing and corrupt files; Save writes atomically via
// a temp file in the same directory plus rename, so a crash mid-write
// cannot corrupt the live file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a store for the given path. An empty path disables
// persistence: Load returns empty, Save is a no-op.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger.With().Str("component", "blocklist").Logger()}
}

// Load reads the blocklist from disk. Never fails: a missing file
// yields an empty map, a corrupt file yields an empty map plus a
// warning.
func (s *Store) Load() map[string]BlockEntry {
	entries := make(map[string]BlockEntry)
	if s.path == "" {
		return entries
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", s.path).Msg("No existing blocklist found")
		} else {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read blocklist, starting empty")
		}
		return entries
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Corrupt blocklist file, starting empty")
		return make(map[string]BlockEntry)
	}

	s.logger.Info().Int("count", len(entries)).Str("path", s.path).Msg("Blocklist loaded")
	return entries
}

// Save writes the blocklist atomically. Failures are returned so the
// caller can log them; in-memory state stays authoritative either way.
func (s *Store) Save(entries map[string]BlockEntry) error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create blocklist directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blocklist: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blocklist temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace blocklist file: %w", err)
	}
	return nil
}
