// Package filter composes the scan cache, classifier, rule engine,
// reputation tracker, and audit sink into the content-security
// pipeline that sits between the untrusted agent feed and the
// downstream reasoning consumer.
package filter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/moltguard/internal/metrics"
	"github.com/harun/moltguard/pkg/audit"
	"github.com/harun/moltguard/pkg/classifier"
	"github.com/harun/moltguard/pkg/reputation"
	"github.com/harun/moltguard/pkg/rules"
	"github.com/harun/moltguard/pkg/scancache"
)

// ScanResult is the combined outcome of scanning one text field.
// Immutable once created; cached by content hash.
type ScanResult struct {
	Clean     bool     `json:"clean"`
	RiskScore float64  `json:"risk_score"`
	Flags     []string `json:"flags"`
	Sanitised string   `json:"sanitised"`
}

// Options carries the constructor-injected collaborators. Engine and
// Classifier default when nil; Tracker is required.
type Options struct {
	Engine        *rules.Engine
	Classifier    classifier.Classifier
	CacheCapacity int
	Tracker       *reputation.Tracker
	Sink          *audit.Sink
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// Service is the pipeline orchestrator. All shared state lives behind
// per-structure locks owned by the collaborators; the service itself
// holds none.
type Service struct {
	engine     *rules.Engine
	classifier classifier.Classifier
	cache      *scancache.Cache[ScanResult]
	tracker    *reputation.Tracker
	sink       *audit.Sink
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New creates the pipeline service.
func New(opts Options) (*Service, error) {
	if opts.Tracker == nil {
		return nil, fmt.Errorf("filter: reputation tracker is required")
	}
	if opts.Engine == nil {
		opts.Engine = rules.Default()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.Disabled{}
	}

	return &Service{
		engine:     opts.Engine,
		classifier: opts.Classifier,
		cache:      scancache.New[ScanResult](opts.CacheCapacity),
		tracker:    opts.Tracker,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "filter").Logger(),
	}, nil
}

// Close releases the service's resources.
func (s *Service) Close() error {
	return s.sink.Close()
}

// Tracker exposes the reputation subsystem to the admin surface.
func (s *Service) Tracker() *reputation.Tracker { return s.tracker }

// Sink exposes the audit sink to collaborators that emit their own
// events (the API client's error auditing, the gateway's live tail).
func (s *Service) Sink() *audit.Sink { return s.sink }

// Engine exposes the rule engine, mainly for rule pack hot reload.
func (s *Service) Engine() *rules.Engine { return s.engine }

// Metrics exposes the metrics registry; may be nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// ScanText scans one text for prompt injection: cache, then classifier
// (when available), then the deterministic rule layer. Results are
// cached by content hash so repeated scans of identical text skip the
// classifier inference. Calling twice with no intervening eviction
// returns the identical result.
func (s *Service) ScanText(ctx context.Context, text string) ScanResult {
	if text == "" {
		return ScanResult{Clean: true, Flags: []string{}, Sanitised: text}
	}

	if cached, found := s.cache.Get(text); found {
		if s.metrics != nil {
			s.metrics.ScanCacheHits.Inc()
		}
		return cached
	}
	if s.metrics != nil {
		s.metrics.ScanCacheMisses.Inc()
	}

	flags := []string{}
	riskScore := 0.0
	sanitised := text

	// Layer 1: learned classifier. Inference runs outside any lock and
	// under its own deadline; a failure degrades this call to rule-only.
	if s.classifier.Available() {
		verdict, err := s.classifier.Score(ctx, text)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Classifier scan failed, continuing rule-only")
			if s.metrics != nil {
				s.metrics.ClassifierErrorsTotal.Inc()
			}
		} else if verdict.Flagged {
			riskScore = verdict.Confidence
			flags = append(flags, fmt.Sprintf("classifier: injection detected (score=%.3f)", verdict.Confidence))
			sanitised = verdict.Redacted
			if s.metrics != nil {
				s.metrics.FlagsTotal.WithLabelValues("classifier").Inc()
			}
		}
	}

	// Layer 2: rule engine, always on the original text so classifier
	// rewrites can never mask a pattern.
	ruleResult := s.engine.Evaluate(text)
	for _, id := range ruleResult.HardMatches {
		flags = append(flags, "rule hard-block: "+id)
	}
	for _, id := range ruleResult.AdvisoryMatches {
		flags = append(flags, "rule advisory: "+id)
	}
	if !ruleResult.Clean() {
		if s.metrics != nil {
			s.metrics.FlagsTotal.WithLabelValues("rules").Inc()
		}
		if sanitised == text {
			sanitised = ruleResult.Redacted
		} else {
			// Rule redactions land on top of the classifier's rewrite.
			sanitised = s.engine.RedactHard(sanitised)
		}
	}

	result := ScanResult{
		Clean:     len(flags) == 0,
		RiskScore: riskScore,
		Flags:     flags,
		Sanitised: sanitised,
	}

	if s.metrics != nil {
		outcome := "clean"
		if !result.Clean {
			outcome = "flagged"
		}
		s.metrics.ScansTotal.WithLabelValues(outcome).Inc()
	}

	s.cache.Put(text, result)
	return result
}
