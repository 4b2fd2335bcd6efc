package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mmo-avatar/internal/config"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/game"
	"mmo-avatar/internal/world"
)

type wsFixture struct {
	engine *game.Engine
	hub    *Hub
	server *httptest.Server
}

func newWSFixture(t *testing.T, serverCfg config.ServerConfig) *wsFixture {
	t.Helper()
	cat, err := content.Default()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	zone, err := world.Default()
	if err != nil {
		t.Fatalf("Failed to load zone: %v", err)
	}

	hub := NewHub(serverCfg, config.DefaultRateLimit(), nil)
	cfg := game.DefaultConfig()
	cfg.Rules.TickInterval = 5 * time.Millisecond
	cfg.Rules.SyncInterval = 10 * time.Millisecond
	cfg.Seed = 1
	engine, err := game.NewEngine(cfg, game.Deps{Zone: zone, Catalog: cat, Outbox: hub})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	hub.Bind(engine)
	engine.Start()

	ts := httptest.NewServer(NewRouter(RouterConfig{
		Engine:         engine,
		Hub:            hub,
		DisableLogging: true,
		RateLimit: &config.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	}))

	t.Cleanup(func() {
		ts.Close()
		hub.Close()
		engine.Stop()
	})
	return &wsFixture{engine: engine, hub: hub, server: ts}
}

func (f *wsFixture) dial(name string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?name=" + name
	return websocket.DefaultDialer.Dial(url, nil)
}

// readEvent reads frames until a text event arrives, skipping movement
// frames.
func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("Bad event %s: %v", data, err)
		}
		return ev.Event, ev.Data
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestWebSocketJoinAndLeave tests that a connection admits its avatar and
// a disconnect removes it
func TestWebSocketJoinAndLeave(t *testing.T) {
	f := newWSFixture(t, config.DefaultServer())

	conn, _, err := f.dial("alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	event, data := readEvent(t, conn)
	if event != "welcome" {
		t.Fatalf("Expected welcome event, got %s", event)
	}
	var welcome struct {
		Name   string `json:"name"`
		Entity uint32 `json:"entity"`
	}
	json.Unmarshal(data, &welcome)
	if welcome.Name != "alice" || welcome.Entity == 0 {
		t.Errorf("Unexpected welcome %s", data)
	}

	waitFor(t, "alice in the view", func() bool {
		_, ok := f.engine.View().Avatar("alice")
		return ok
	})
	if got := f.hub.SessionCount(); got != 1 {
		t.Errorf("Expected 1 session, got %d", got)
	}

	conn.Close()
	waitFor(t, "alice to leave", func() bool {
		_, ok := f.engine.View().Avatar("alice")
		return !ok && f.hub.SessionCount() == 0
	})
}

// TestWebSocketDuplicateName tests that a second connection for an online
// avatar is refused
func TestWebSocketDuplicateName(t *testing.T) {
	f := newWSFixture(t, config.DefaultServer())

	conn, _, err := f.dial("alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	_, resp, err := f.dial("alice")
	if err == nil {
		t.Fatal("Expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %v", resp)
	}
}

// TestWebSocketRejections tests handshake refusals
func TestWebSocketRejections(t *testing.T) {
	serverCfg := config.DefaultServer()
	serverCfg.MaxPerIP = 1
	f := newWSFixture(t, serverCfg)

	if _, resp, err := f.dial(""); err == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without a name, got %v", resp)
	}

	conn, _, err := f.dial("alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	if _, resp, err := f.dial("bob"); err == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429 over the per-IP limit, got %v", resp)
	}

	long := strings.Repeat("x", 64)
	conn.Close()
	waitFor(t, "slot release", func() bool { return f.hub.SessionCount() == 0 })

	c, _, err := f.dial(long)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = c.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Expected policy violation close for invalid name, got %v", err)
	}
}

// TestWebSocketCommands tests that text commands reach the engine
func TestWebSocketCommands(t *testing.T) {
	f := newWSFixture(t, config.DefaultServer())

	conn, _, err := f.dial("alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)

	before := f.engine.View().Inbox.Processed
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"cancel_action"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	waitFor(t, "command processed", func() bool {
		return f.engine.View().Inbox.Processed > before
	})
}

// TestHubDeliverUnknownAvatar tests that traffic for an avatar without a
// session is discarded
func TestHubDeliverUnknownAvatar(t *testing.T) {
	hub := NewHub(config.DefaultServer(), config.DefaultRateLimit(), nil)
	hub.Deliver("nobody", nil, []game.Notice{{Kind: "test"}})
	if hub.SessionCount() != 0 {
		t.Error("Expected no sessions")
	}
}
