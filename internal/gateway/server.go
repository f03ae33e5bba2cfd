// Package gateway is the admin HTTP surface: health, metrics, the
// blocklist, ad-hoc scans, and a live audit-event tail over WebSocket.
// It is an operator tool and must never sit on the content path.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/moltguard/internal/metrics"
	"github.com/harun/moltguard/pkg/filter"
	"github.com/harun/moltguard/pkg/ratelimit"
)

// RulesSource provides the latest condensed platform rules text.
type RulesSource interface {
	Latest() string
}

// Server is the admin gateway server
type Server struct {
	host           string
	port           int
	auth           *AuthHandler
	server         *http.Server
	upgrader       websocket.Upgrader
	filter         *filter.Service
	limiter        *ratelimit.Limiter
	metrics        *metrics.Metrics
	rules          RulesSource
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
	tailConns      sync.WaitGroup
	tailMu         sync.Mutex
	tails          map[*websocket.Conn]struct{}
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	Filter       *filter.Service
	Limiter      *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Rules        RulesSource
	Logger       zerolog.Logger
}

// NewServer creates the admin gateway
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Filter == nil {
		return nil, fmt.Errorf("filter service is required")
	}

	return &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		auth:    NewAuthHandler(cfg.SharedSecret),
		filter:  cfg.Filter,
		limiter: cfg.Limiter,
		metrics: cfg.Metrics,
		rules:   cfg.Rules,
		logger:  cfg.Logger.With().Str("component", "gateway").Logger(),
		tails:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // operator tool, bound to localhost by default
			},
		},
	}, nil
}

// Start starts the server and returns without blocking.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/api/scan", s.withAuth(s.handleScan))
	mux.HandleFunc("/api/blocklist", s.withAuth(s.handleBlocklist))
	mux.HandleFunc("/api/blocklist/", s.withAuth(s.handleUnblock))
	mux.HandleFunc("/api/flags", s.withAuth(s.handleFlags))
	mux.HandleFunc("/api/ratelimits", s.withAuth(s.handleRateLimits))
	mux.HandleFunc("/api/platform/rules", s.withAuth(s.handlePlatformRules))
	mux.HandleFunc("/ws/audit", s.withAuth(s.handleAuditTail))

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting admin gateway")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down admin gateway")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	// Shutdown does not touch hijacked connections, so an idle audit
	// tail client would keep its goroutine alive forever. Close them
	// explicitly before waiting.
	s.tailMu.Lock()
	for conn := range s.tails {
		conn.Close()
	}
	s.tailMu.Unlock()

	s.tailConns.Wait()
	return nil
}

func (s *Server) trackTail(conn *websocket.Conn) {
	s.tailMu.Lock()
	s.tails[conn] = struct{}{}
	s.tailMu.Unlock()
}

func (s *Server) untrackTail(conn *websocket.Conn) {
	s.tailMu.Lock()
	delete(s.tails, conn)
	s.tailMu.Unlock()
}

// withAuth wraps a handler with shared-secret auth, shutdown rejection,
// and per-request logging.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		if !s.auth.Authorize(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		reqID, err := gonanoid.New()
		if err != nil {
			reqID = "unknown"
		}
		s.logger.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Gateway request")

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
