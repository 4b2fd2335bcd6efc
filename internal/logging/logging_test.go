package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mmo-avatar/internal/config"
)

// TestFileOutput tests that entries reach the rotating file.
func TestFileOutput(t *testing.T) {
	cfg := config.DefaultLogging()
	cfg.Format = "json"
	cfg.File = filepath.Join(t.TempDir(), "server.log")

	log, sync, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Named("engine").Info("avatar joined")
	log.Debug("below the level")
	sync()

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"avatar joined"`) || !strings.Contains(out, `"logger":"engine"`) {
		t.Errorf("Expected the named entry, got %q", out)
	}
	if strings.Contains(out, "below the level") {
		t.Error("Expected debug entries filtered at info")
	}
}

// TestBadLevel verifies unknown levels are rejected.
func TestBadLevel(t *testing.T) {
	cfg := config.DefaultLogging()
	cfg.Level = "loud"
	if _, _, err := New(cfg); err == nil {
		t.Error("Expected an error")
	}
}
