package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mmo-avatar/internal/config"
	"mmo-avatar/internal/game"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the session hub.
type Server struct {
	engine      *game.Engine
	hub         *Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	cfg         config.AppConfig
	log         *zap.Logger
}

// NewServer creates the API server. The hub must already be bound to the
// engine (it is the engine's outbox).
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine *game.Engine, hub *Hub, store AvatarStore, cfg config.AppConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		hub:    hub,
		cfg:    cfg,
		log:    log,
	}

	// Create rate limiter (we track it for cleanup)
	s.rateLimiter = NewIPRateLimiter(cfg.RateLimit)

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Store:       store,
		Hub:         hub,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins the broadcast loop and serves HTTP until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	// Start background workers NOW, not in constructor
	s.hub.StartBroadcastLoop(s.engine.View, time.Second)

	s.log.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
//
// Example:
//
//	server := api.NewServer(engine, hub, nil, config.Default(), nil)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/world")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the session hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Shutdown stops accepting requests, disconnects every session and stops
// background workers. Sessions leave the engine as they close, so the
// engine should be stopped after this returns.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return err
}
