// Package server is the relay's HTTP front: the web viewer and its JSON
// API, the SSE event stream, and the MCP endpoint, all on one listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/mcp"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

// Server hosts the relay's HTTP surface.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	bus     *event.Bus
	broker  *Broker
	mcp     *mcp.HTTPHandler
	metrics *telemetry.Metrics
	logger  *telemetry.Logger
	started time.Time
}

// New creates a server and registers its SSE broker on the event bus, so
// posts and channel creations reach connected viewers.
func New(cfg *config.Config, st *store.Store, bus *event.Bus, mcpHandler *mcp.HTTPHandler, metrics *telemetry.Metrics, logger *telemetry.Logger) *Server {
	broker := NewBroker(logger)
	bus.Register(broker)

	return &Server{
		cfg:     cfg,
		store:   st,
		bus:     bus,
		broker:  broker,
		mcp:     mcpHandler,
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the complete relay handler: routes plus CORS. Tests mount
// it on httptest listeners; Start serves it directly.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.setupRoutes())
}

// Start runs the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay server", "addr", addr, "mcp_path", s.cfg.Server.MCPPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Read-only message API for the viewer. Posting goes through MCP.
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("GET /api/channels", s.handleChannels)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// SSE events
	mux.HandleFunc("GET /api/events", s.handleSSEEvents)
	mux.HandleFunc("GET /api/events/{target}", s.handleSSEEventsFiltered)

	// MCP endpoint. The handler does its own method switching.
	mux.Handle(s.cfg.Server.MCPPath, s.mcp)

	// Viewer page
	mux.Handle("/", staticHandler(s.cfg.Server.MCPPath))

	return mux
}

// corsMiddleware adds CORS headers so the viewer can be served from a dev
// server against a running relay.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id")
			w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
