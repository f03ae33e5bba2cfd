package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Service refreshes the platform rules on a cron schedule and keeps
// the latest condensed text available to callers.
type Service struct {
	fetcher  *Fetcher
	cron     *cron.Cron
	logger   zerolog.Logger
	mu       sync.RWMutex
	latest   string
	onChange func([]Change)
}

// NewService wires a fetcher onto a schedule. onChange, if non-nil,
// runs whenever a file's hash moved.
func NewService(fetcher *Fetcher, schedule string, logger zerolog.Logger, onChange func([]Change)) (*Service, error) {
	s := &Service{
		fetcher:  fetcher,
		logger:   logger.With().Str("component", "platform").Logger(),
		latest:   FallbackRules,
		onChange: onChange,
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	if _, err := c.AddFunc(schedule, s.refresh); err != nil {
		return nil, fmt.Errorf("platform: invalid schedule %q: %w", schedule, err)
	}
	s.cron = c
	return s, nil
}

// Start runs one immediate refresh, then the schedule.
func (s *Service) Start() {
	s.refresh()
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Latest returns the most recent condensed rules text.
func (s *Service) Latest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Service) refresh() {
	summary, changes, err := s.fetcher.Refresh(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Platform rules refresh failed")
		return
	}

	s.mu.Lock()
	s.latest = summary
	s.mu.Unlock()

	if len(changes) > 0 && s.onChange != nil {
		s.onChange(changes)
	}
}
