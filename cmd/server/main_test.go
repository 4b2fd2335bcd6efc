package main

import (
	"path/filepath"
	"testing"
	"time"

	"mmo-avatar/internal/config"
)

// TestEngineConfig verifies simulation settings reach the engine rules.
func TestEngineConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.TickRate = 40
	cfg.Simulation.TradeSlots = 4
	cfg.Simulation.MaxNameLength = 16
	cfg.Persistence.AutosaveInterval = time.Minute

	got := engineConfig(cfg)
	if got.Rules.TickInterval != 25*time.Millisecond {
		t.Errorf("Expected 25ms tick, got %v", got.Rules.TickInterval)
	}
	if got.Rules.TradeSlots != 4 {
		t.Errorf("Expected 4 trade slots, got %d", got.Rules.TradeSlots)
	}
	if got.Limits.MaxName != 16 {
		t.Errorf("Expected name limit 16, got %d", got.Limits.MaxName)
	}
	if got.AutosaveInterval != time.Minute {
		t.Errorf("Expected 1m autosave, got %v", got.AutosaveInterval)
	}
}

// TestLoadContent verifies the built-in catalog and map load, and that a
// configured path that does not exist is an error.
func TestLoadContent(t *testing.T) {
	catalog, zone, err := loadContent(config.ContentConfig{})
	if err != nil {
		t.Fatalf("loadContent failed: %v", err)
	}
	if catalog == nil || zone == nil {
		t.Fatal("Expected catalog and zone")
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, _, err := loadContent(config.ContentConfig{CatalogPath: missing}); err == nil {
		t.Error("Expected error for missing catalog")
	}
	if _, _, err := loadContent(config.ContentConfig{MapPath: missing}); err == nil {
		t.Error("Expected error for missing map")
	}
}
