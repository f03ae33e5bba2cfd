// Package classifier wraps an external learned injection classifier
// behind a small capability interface. The pipeline treats it as
// optional: when no provider is configured, or a provider fails to
// construct, scanning degrades to rule-engine-only.
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Verdict is a single classifier judgement on one text.
type Verdict struct {
	Flagged    bool
	Confidence float64
	Redacted   string
}

// Classifier scores text for prompt-injection likelihood. Score must
// never panic on ordinary input; a call failure is returned as an error
// and does not disable an available classifier (availability is
// monotonic for the life of the process).
type Classifier interface {
	Available() bool
	Score(ctx context.Context, text string) (Verdict, error)
}

// Config selects and tunes the provider.
type Config struct {
	Enabled bool
	// Provider is "anthropic" or "openai".
	Provider string
	// Threshold in [0,1]; scores at or above it flag the text.
	Threshold float64
	// Timeout bounds a single scoring call so a hanging model can
	// never stall the pipeline.
	Timeout time.Duration
	Model   string
	APIKey  string
}

// DefaultThreshold matches the original deployment.
const DefaultThreshold = 0.5

// DefaultTimeout bounds a single inference call.
const DefaultTimeout = 10 * time.Second

// New builds the configured classifier. Construction problems are not
// fatal: they are logged once and a disabled classifier is returned, so
// the pipeline runs rule-only.
func New(cfg Config, logger zerolog.Logger) Classifier {
	if !cfg.Enabled {
		logger.Info().Msg("Classifier disabled, using rule-only filtering")
		return Disabled{}
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		c   Classifier
		err error
	)
	switch cfg.Provider {
	case "anthropic":
		c, err = newAnthropic(cfg, logger)
	case "openai":
		c, err = newOpenAI(cfg, logger)
	default:
		err = fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Classifier unavailable, falling back to rule-only filtering")
		return Disabled{}
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Float64("threshold", cfg.Threshold).
		Msg("Classifier loaded")
	return &timeoutClassifier{inner: c, timeout: cfg.Timeout}
}

// Disabled is the no-op classifier used when scoring is off.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Score(context.Context, string) (Verdict, error) {
	return Verdict{}, nil
}

// timeoutClassifier enforces the per-call deadline for every provider.
type timeoutClassifier struct {
	inner   Classifier
	timeout time.Duration
}

func (t *timeoutClassifier) Available() bool { return t.inner.Available() }

func (t *timeoutClassifier) Score(ctx context.Context, text string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Score(ctx, text)
}
