package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/moltguard/internal/config"
	"github.com/harun/moltguard/internal/gateway"
	"github.com/harun/moltguard/internal/logger"
	"github.com/harun/moltguard/internal/metrics"
	"github.com/harun/moltguard/internal/platform"
	"github.com/harun/moltguard/pkg/audit"
	"github.com/harun/moltguard/pkg/classifier"
	"github.com/harun/moltguard/pkg/filter"
	"github.com/harun/moltguard/pkg/ratelimit"
	"github.com/harun/moltguard/pkg/reputation"
	"github.com/harun/moltguard/pkg/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the moltguard service",
	Long: `Run the content filter pipeline with the admin gateway and the
scheduled platform-rules refresh. Blocks until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer log.Close()
	zl := log.GetZerolog()

	svc, limiter, err := buildPipeline(cfg, zl)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Optional rule pack with hot reload.
	var packWatcher *rules.PackWatcher
	if cfg.Filter.RulePack != "" {
		pack, err := rules.LoadPack(cfg.Filter.RulePack)
		if err != nil {
			return fmt.Errorf("rule pack: %w", err)
		}
		svc.Engine().Swap(append(rules.DefaultRules(), pack...))
		zl.Info().Str("path", cfg.Filter.RulePack).Int("rules", len(pack)).Msg("Loaded rule pack")

		if cfg.Filter.WatchRules {
			packWatcher, err = rules.NewPackWatcher(svc.Engine(), cfg.Filter.RulePack, zl)
			if err != nil {
				return fmt.Errorf("rule pack watcher: %w", err)
			}
			if err := packWatcher.Start(); err != nil {
				return fmt.Errorf("rule pack watcher: %w", err)
			}
			defer packWatcher.Stop()
		}
	}

	// The platform service comes up first so the gateway can serve
	// its latest summary.
	var rulesSource gateway.RulesSource
	if cfg.PlatformRules.Enabled {
		fetcher := platform.NewFetcher(cfg.PlatformRules.URL, cfg.PlatformRules.CachePath, zl)
		rulesSvc, err := platform.NewService(fetcher, cfg.PlatformRules.Schedule, zl, func(changes []platform.Change) {
			for _, ch := range changes {
				zl.Info().Str("file", ch.File).Str("hash", ch.NewHash).Msg("Platform rules changed")
			}
		})
		if err != nil {
			return err
		}
		rulesSvc.Start()
		defer rulesSvc.Stop()
		rulesSource = rulesSvc
	}

	if cfg.Gateway.Enabled {
		gw, err := gateway.NewServer(gateway.Config{
			Host:         cfg.Gateway.Host,
			Port:         cfg.Gateway.Port,
			SharedSecret: cfg.Gateway.SharedSecret,
			Filter:       svc,
			Limiter:      limiter,
			Metrics:      svc.Metrics(),
			Rules:        rulesSource,
			Logger:       zl,
		})
		if err != nil {
			return err
		}
		if err := gw.Start(); err != nil {
			return err
		}
		defer func() { _ = gw.Stop() }()
	}

	zl.Info().Str("version", version).Msg("moltguard running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	zl.Info().Msg("Shutting down")
	return nil
}

// buildPipeline assembles the filter service and the write limiter
// from configuration.
func buildPipeline(cfg *config.Config, zl zerolog.Logger) (*filter.Service, *ratelimit.Limiter, error) {
	m := metrics.NewMetrics()

	sink, err := audit.NewSink(cfg.Audit.Path, zl)
	if err != nil {
		return nil, nil, fmt.Errorf("audit sink: %w", err)
	}

	store := reputation.NewStore(cfg.Reputation.BlocklistPath, zl)
	tracker := reputation.NewTracker(reputation.Config{
		Threshold:     cfg.Reputation.FlagThreshold,
		BlockDuration: time.Duration(cfg.Reputation.BlockDuration) * time.Second,
	}, store, sink, zl)

	// Keep the blocked-authors counter moving without coupling the
	// tracker to prometheus.
	sink.Subscribe(func(ev audit.Event) {
		switch ev.Event {
		case audit.EventAuthorBlocked:
			m.AuthorsBlockedTotal.Inc()
		case audit.EventAuthorUnblocked:
			method, _ := ev.Fields["method"].(string)
			if method == "" {
				method = "unknown"
			}
			m.AuthorsUnblockedTotal.WithLabelValues(method).Inc()
		}
	})

	cls := classifier.New(classifier.Config{
		Enabled:   cfg.Classifier.Enabled,
		Provider:  cfg.Classifier.Provider,
		Model:     cfg.Classifier.Model,
		APIKey:    cfg.Classifier.APIKey,
		Threshold: cfg.Classifier.Threshold,
		Timeout:   time.Duration(cfg.Classifier.Timeout) * time.Second,
	}, zl)

	svc, err := filter.New(filter.Options{
		Classifier:    cls,
		CacheCapacity: cfg.Filter.CacheCapacity,
		Tracker:       tracker,
		Sink:          sink,
		Metrics:       m,
		Logger:        zl,
	})
	if err != nil {
		return nil, nil, err
	}

	return svc, ratelimit.New(cfg.Windows()), nil
}
