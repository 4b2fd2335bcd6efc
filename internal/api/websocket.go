package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mmo-avatar/internal/config"
	"mmo-avatar/internal/game"
	"mmo-avatar/internal/movement"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// SessionEngine is what a websocket session needs from the engine.
type SessionEngine interface {
	Join(ctx context.Context, name string) (game.EntityID, error)
	Leave(name string)
	Submit(name string, cmd game.Command) bool
}

type frame struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

// session is one connected avatar.
type session struct {
	id      uuid.UUID
	name    string
	entity  game.EntityID
	ip      string
	conn    *websocket.Conn
	send    chan frame
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// enqueue queues a frame without blocking. A slow client loses frames;
// the next periodic delta resynchronizes it.
func (s *session) enqueue(f frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- f:
		return true
	default:
		wsMessagesTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Hub owns every websocket session. It implements game.Outbox: the engine
// hands it per-avatar traffic on the tick goroutine and the hub queues it
// on the avatar's connection.
type Hub struct {
	engine    SessionEngine
	cfg       config.ServerConfig
	limits    config.RateLimitConfig
	origins   *OriginChecker
	upgrader  websocket.Upgrader
	wsLimiter *WebSocketRateLimiter
	log       *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session // avatar name -> session
	closed   bool

	pumps    sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ game.Outbox = (*Hub)(nil)

// NewHub creates a hub. No goroutines run until connections arrive or
// StartBroadcastLoop is called. The engine is attached with Bind, since
// the engine itself is built with the hub as its outbox.
func NewHub(cfg config.ServerConfig, limits config.RateLimitConfig, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		cfg:       cfg,
		limits:    limits,
		origins:   NewOriginChecker(cfg.CORSOrigins),
		wsLimiter: NewWebSocketRateLimiter(cfg.MaxPerIP),
		log:       log.Named("ws"),
		sessions:  make(map[string]*session),
		stopChan:  make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.origins.Allowed(origin) {
				return true
			}
			h.log.Warn("websocket origin rejected", zap.String("origin", origin))
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Bind attaches the engine sessions join. Connections are refused until
// it is called.
func (h *Hub) Bind(engine SessionEngine) {
	h.mu.Lock()
	h.engine = engine
	h.mu.Unlock()
}

// SessionCount returns the number of connected avatars.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Deliver implements game.Outbox. Movement messages go out as one binary
// frame of concatenated wire messages, notices as one JSON text frame.
func (h *Hub) Deliver(avatar string, msgs []movement.Message, notices []game.Notice) {
	h.mu.RLock()
	s := h.sessions[avatar]
	h.mu.RUnlock()
	if s == nil {
		return
	}
	if len(msgs) > 0 {
		buf := make([]byte, 0, len(msgs)*(movement.HeaderSize+32))
		for _, m := range msgs {
			buf = movement.Encode(buf, m)
		}
		if s.enqueue(frame{kind: websocket.BinaryMessage, data: buf}) {
			wsMessagesTotal.WithLabelValues("out").Inc()
		}
	}
	if len(notices) > 0 {
		data, err := encodeEvent("notices", notices)
		if err != nil {
			h.log.Warn("notice not encodable", zap.String("avatar", avatar), zap.Error(err))
			return
		}
		if s.enqueue(frame{kind: websocket.TextMessage, data: data}) {
			wsMessagesTotal.WithLabelValues("out").Inc()
		}
	}
}

// Broadcast sends an event to every session.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := encodeEvent(event, data)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.enqueue(frame{kind: websocket.TextMessage, data: msg})
	}
}

// StartBroadcastLoop periodically sends a world summary to every session.
func (h *Hub) StartBroadcastLoop(view func() *game.WorldView, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
				if h.SessionCount() == 0 {
					continue
				}
				v := view()
				if v == nil {
					continue
				}
				h.Broadcast("world:stats", map[string]any{
					"tick":     v.Tick,
					"sequence": v.Sequence,
					"online":   len(v.Avatars),
					"monsters": len(v.Monsters),
				})
			}
		}
	}()
}

// Close disconnects every session and waits for their pumps to exit.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	h.mu.Lock()
	h.closed = true
	for _, s := range h.sessions {
		s.close()
	}
	h.mu.Unlock()
	h.pumps.Wait()
}

// reserve registers a session under its avatar name. It fails while
// another connection holds the name.
func (h *Hub) reserve(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if _, taken := h.sessions[s.name]; taken {
		return false
	}
	h.sessions[s.name] = s
	wsConnectionsActive.Set(float64(len(h.sessions)))
	return true
}

func (h *Hub) unregister(s *session) {
	h.wsLimiter.Release(s.ip)
	h.mu.Lock()
	if h.sessions[s.name] == s {
		delete(h.sessions, s.name)
	}
	count := len(h.sessions)
	h.mu.Unlock()
	wsConnectionsActive.Set(float64(count))
	h.log.Info("session closed",
		zap.String("session", s.id.String()),
		zap.String("avatar", s.name),
		zap.Int("remaining", count))
}

// HandleWebSocket upgrades the request, admits the avatar named by the
// "name" query parameter and runs the session.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	engine := h.engine
	h.mu.RUnlock()
	if engine == nil {
		writeError(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}

	ip := GetClientIP(r)
	name := r.URL.Query().Get("name")
	if name == "" {
		RecordConnectionRejected("invalid")
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	if total := h.SessionCount(); total >= h.cfg.MaxConnections {
		h.log.Warn("websocket rejected: total limit reached", zap.Int("total", total))
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		h.log.Warn("websocket rejected: per-IP limit reached", zap.String("ip", ip))
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	s := &session{
		id:      uuid.New(),
		name:    name,
		ip:      ip,
		send:    make(chan frame, h.cfg.SendQueue),
		limiter: newCommandLimiter(h.limits),
		done:    make(chan struct{}),
	}
	if !h.reserve(s) {
		h.wsLimiter.Release(ip)
		RecordConnectionRejected("join")
		writeError(w, "avatar already connected", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		h.unregister(s)
		return
	}
	s.conn = conn

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.JoinTimeout)
	id, err := engine.Join(ctx, name)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// the join may still land; make sure it is undone
			engine.Leave(name)
		}
		h.log.Info("join refused", zap.String("avatar", name), zap.Error(err))
		RecordConnectionRejected("join")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		h.unregister(s)
		return
	}
	s.entity = id

	welcome, _ := encodeEvent("welcome", map[string]any{
		"session": s.id.String(),
		"entity":  uint32(id),
		"name":    name,
	})
	s.enqueue(frame{kind: websocket.TextMessage, data: welcome})
	h.log.Info("session opened",
		zap.String("session", s.id.String()),
		zap.String("avatar", name),
		zap.String("ip", ip),
		zap.Uint32("entity", uint32(id)))

	h.pumps.Add(2)
	go h.writePump(s)
	go h.readPump(engine, s)
}

// readPump turns client frames into engine commands. Binary frames are
// position reports, text frames JSON commands.
func (h *Hub) readPump(engine SessionEngine, s *session) {
	defer h.pumps.Done()
	defer func() {
		s.close()
		engine.Leave(s.name)
		h.unregister(s)
	}()

	s.conn.SetReadLimit(h.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", zap.String("avatar", s.name), zap.Error(err))
			}
			return
		}
		wsMessagesTotal.WithLabelValues("in").Inc()

		var cmd game.Command
		switch kind {
		case websocket.BinaryMessage:
			cmd, err = DecodePosition(data)
		case websocket.TextMessage:
			if !s.limiter.Allow() {
				wsMessagesTotal.WithLabelValues("limited").Inc()
				continue
			}
			cmd, err = DecodeCommand(data)
		default:
			continue
		}
		if err != nil {
			h.log.Debug("bad client frame", zap.String("avatar", s.name), zap.Error(err))
			continue
		}
		engine.Submit(s.name, cmd)
	}
}

// writePump drains the send queue and keeps the connection alive.
func (h *Hub) writePump(s *session) {
	defer h.pumps.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case f := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(f.kind, f.data); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
