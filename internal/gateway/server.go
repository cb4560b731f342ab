// Package gateway is the HTTP surface of the engagement engine: context and
// behavior tracking routes, the onboarding conversation, business scans, the
// live activity feed (SSE and WebSocket), and the trial endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/feed"
	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/onboarding"
	"github.com/skrblai/percy/internal/scan"
	"github.com/skrblai/percy/internal/tracker"
	"github.com/skrblai/percy/internal/trial"
	"github.com/skrblai/percy/internal/version"
)

// ActivityLog reads back persisted feed events for late joiners.
type ActivityLog interface {
	Recent(limit int) ([]domain.ActivityEvent, error)
}

// Server is the Percy gateway HTTP server.
type Server struct {
	cfg  config.Config
	auth ResolvedAuth
	log  *logging.Logger

	tracker  *tracker.Tracker
	engine   *onboarding.Engine
	scanner  scan.Scanner
	gate     *trial.Gate
	hub      *feed.Hub
	activity ActivityLog // nil when durable activity logging is disabled

	startedAt   time.Time
	httpServer  *http.Server
	authLimiter *ipWindow
	scanLimiter *ipWindow
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithTracker sets the behavior tracker.
func WithTracker(t *tracker.Tracker) ServerOption {
	return func(s *Server) { s.tracker = t }
}

// WithOnboarding sets the conversation engine.
func WithOnboarding(e *onboarding.Engine) ServerOption {
	return func(s *Server) { s.engine = e }
}

// WithScanner sets the business-scan collaborator.
func WithScanner(sc scan.Scanner) ServerOption {
	return func(s *Server) { s.scanner = sc }
}

// WithGate sets the trial gate.
func WithGate(g *trial.Gate) ServerOption {
	return func(s *Server) { s.gate = g }
}

// WithHub sets the activity feed hub.
func WithHub(h *feed.Hub) ServerOption {
	return func(s *Server) { s.hub = h }
}

// WithActivityLog sets the persisted event reader for the feed backlog route.
func WithActivityLog(a ActivityLog) ServerOption {
	return func(s *Server) { s.activity = a }
}

// New creates a gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	perMinute := cfg.Server.RateLimit.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Server.Auth),
		log:         log.Sub("gateway"),
		authLimiter: newIPWindow(authRateWindow, authRateMaxFails),
		scanLimiter: newIPWindow(time.Minute, perMinute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(corsMiddleware(s.cfg.Server.AllowedOrigins))
	r.Use(loggingMiddleware(s.log))
	s.registerRoutes(r)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// SSE connections stay open indefinitely, so no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("version", version.Version).
		Bool("auth", s.auth.Enabled()).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
