package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mmo-avatar/internal/config"
	"mmo-avatar/internal/game"
	"mmo-avatar/internal/persist"
	"mmo-avatar/internal/world"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// View returns the latest published, immutable world view
	View() *game.WorldView
	// Parties returns party membership, safe for concurrent reads
	Parties() *game.PartyManager
	// Journal returns the event journal (may be nil)
	Journal() *game.Journal
	// Zone returns the map the engine runs on
	Zone() *world.Zone
}

// AvatarStore is the read side of the avatar store.
type AvatarStore interface {
	Get(ctx context.Context, name string) (game.AvatarSnapshot, error)
	List(ctx context.Context, limit int) ([]persist.Summary, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    RateLimit: &config.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Store serves saved avatars (optional)
	Store AvatarStore

	// Hub serves /ws when set
	Hub *Hub

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimit.
	RateLimiter *IPRateLimiter

	// RateLimit is used only if RateLimiter is nil. If both are nil,
	// config.DefaultRateLimit applies.
	RateLimit *config.RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default server origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	Log *zap.Logger
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine EngineInterface
	store  AvatarStore
	log    *zap.Logger
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// Apart from the rate limiter's cleanup goroutine (when none is passed in)
// it has no side effects: no listeners, no engine work. This makes it safe
// to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()

	// Middleware - Order matters!
	r.Use(middleware.RequestID)
	if !cfg.DisableLogging {
		r.Use(requestLogger(log))
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := config.DefaultRateLimit()
		if cfg.RateLimit != nil {
			rateLimitCfg = *cfg.RateLimit
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = config.DefaultServer().CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &routerHandlers{
		engine: cfg.Engine,
		store:  cfg.Store,
		log:    log,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/avatars", h.handleListAvatars)
		r.Get("/avatars/{name}", h.handleGetAvatar)
		r.Get("/world", h.handleGetWorld)
		r.Get("/parties", h.handleGetParties)
		r.Get("/journal", h.handleGetJournal)

		r.Get("/debug/minimap.png", h.handleMinimap)
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.HandleWebSocket)
	}

	return r
}

// requestLogger logs every request at debug and records request metrics by
// route pattern.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			RecordRequest(r.Method, pattern, status, time.Since(start))
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", pattern),
				zap.Int("status", status),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
