package api

import (
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mmo-avatar/internal/config"
	"mmo-avatar/internal/game"
)

// Metrics with bounded cardinality (no per-avatar labels to prevent DoS)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in a simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	avatarsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_avatars_online",
		Help: "Avatars currently in the world",
	})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_state_transitions_total",
		Help: "Avatar state transitions",
	}, []string{"from", "to"}) // Bounded: the six states

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_commands_total",
		Help: "Client commands by outcome",
	}, []string{"command", "reason"}) // Bounded: command names x gate reasons

	syncCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_sync_corrections_total",
		Help: "Movement corrections sent by the synchronizer",
	}, []string{"kind"}) // Bounded: "teleport", "reset", "correction"

	inboxDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_inbox_dropped_total",
		Help: "Commands dropped because the inbox was full",
	})

	persistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_persist_errors_total",
		Help: "Avatar store failures",
	}, []string{"op"}) // Bounded: "load", "save"

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "invalid", "ws_total_limit", "ws_ip_limit", "join"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"}) // Bounded: "in", "out", "dropped", "limited"
)

// PromMetrics reports simulation measurements to Prometheus.
type PromMetrics struct{}

var _ game.Metrics = PromMetrics{}

func (PromMetrics) Tick(d time.Duration) { tickDuration.Observe(d.Seconds()) }
func (PromMetrics) Online(n int) { avatarsOnline.Set(float64(n)) }

func (PromMetrics) Transition(from, to game.State) {
	stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (PromMetrics) Command(name string, r game.Reason) {
	reason := string(r)
	if r == game.ReasonOK {
		reason = "ok"
	}
	commandsTotal.WithLabelValues(name, reason).Inc()
}

func (PromMetrics) Sync(teleports, resets, corrections uint64) {
	if teleports > 0 {
		syncCorrections.WithLabelValues("teleport").Add(float64(teleports))
	}
	if resets > 0 {
		syncCorrections.WithLabelValues("reset").Add(float64(resets))
	}
	if corrections > 0 {
		syncCorrections.WithLabelValues("correction").Add(float64(corrections))
	}
}

func (PromMetrics) InboxDropped(n uint64) { inboxDropped.Add(float64(n)) }
func (PromMetrics) PersistError(op string) { persistErrors.WithLabelValues(op).Inc() }

// NewDebugServer builds the internal observability server. It is not
// started; the caller runs ListenAndServe and Shutdown.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func NewDebugServer(cfg config.ObservabilityConfig, log *zap.Logger) *http.Server {
	if !cfg.AllowExternal && !isLoopback(cfg.ListenAddr) {
		log.Warn("debug server forced to localhost", zap.String("requested", cfg.ListenAddr))
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartDebugServer runs srv in the background until it is shut down.
func StartDebugServer(srv *http.Server, log *zap.Logger) {
	go func() {
		log.Info("debug server starting",
			zap.String("pprof", "http://"+srv.Addr+"/debug/pprof/"),
			zap.String("metrics", "http://"+srv.Addr+"/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("debug server failed", zap.Error(err))
		}
	}()
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
