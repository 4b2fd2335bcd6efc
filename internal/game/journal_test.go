package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// TestJournalRecent tests that recent entries come back oldest first.
func TestJournalRecent(t *testing.T) {
	j := NewJournal(zap.NewNop())
	j.SetTick(4)
	j.Emit(EventTypeLogin, "alice", SessionPayload{Entity: 1, Level: 1})
	j.Emit(EventTypeDamage, "alice", DamagePayload{})
	j.Emit(EventTypeLogout, "bob", SessionPayload{Entity: 2, Level: 3})

	if got := j.Recent(0); got != nil {
		t.Errorf("Expected nil for 0, got %v", got)
	}
	all := j.Recent(10)
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	for i, want := range []EventType{EventTypeLogin, EventTypeDamage, EventTypeLogout} {
		if all[i].Type != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, all[i].Type)
		}
		if all[i].Sequence != uint64(i+1) || all[i].Tick != 4 {
			t.Errorf("Entry %d: expected sequence %d at tick 4, got %d at %d", i, i+1, all[i].Sequence, all[i].Tick)
		}
	}
	last := j.Recent(1)
	if len(last) != 1 || last[0].Actor != "bob" {
		t.Errorf("Expected bob's logout last, got %v", last)
	}
	var p SessionPayload
	if err := json.Unmarshal(last[0].Payload, &p); err != nil || p.Level != 3 {
		t.Errorf("Expected the payload kept, got %+v (%v)", p, err)
	}
	if j.Total() != 3 {
		t.Errorf("Expected 3 total, got %d", j.Total())
	}
}

// TestJournalActorLimit verifies a single actor cannot flood the journal.
func TestJournalActorLimit(t *testing.T) {
	j := NewJournal(zap.NewNop())
	accepted := 0
	for i := 0; i < MaxEntriesPerActor; i++ {
		if j.Emit(EventTypeDamage, "spammer", DamagePayload{}) {
			accepted++
		}
	}
	if accepted >= MaxEntriesPerActor {
		t.Errorf("Expected some entries dropped, accepted %d", accepted)
	}
	if j.Dropped() == 0 {
		t.Error("Expected drops counted")
	}
	if !j.Emit(EventTypeDamage, "other", DamagePayload{}) {
		t.Error("Expected another actor unaffected")
	}
}

// TestJournalFile tests that entries are written as JSON lines.
func TestJournalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := NewJournal(zap.NewNop())
	if err := j.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	j.Emit(EventTypeLogin, "alice", SessionPayload{Entity: 1, Level: 1})
	j.Emit(EventTypeCraft, "alice", CraftPayload{})
	j.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Type  string `json:"type"`
			Actor string `json:"actor"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("Bad line %q: %v", sc.Text(), err)
		}
		types = append(types, line.Type)
	}
	if len(types) != 2 || types[0] != "login" || types[1] != "craft" {
		t.Errorf("Expected login and craft lines, got %v", types)
	}
}

// TestEventTypeText tests the names used in JSON output.
func TestEventTypeText(t *testing.T) {
	tests := []struct {
		t    EventType
		want string
	}{
		{EventTypeStateChange, "state_change"},
		{EventTypeTeleport, "teleport"},
		{EventType(200), "unknown"},
	}
	for _, tt := range tests {
		b, err := tt.t.MarshalText()
		if err != nil || string(b) != tt.want {
			t.Errorf("Expected %q, got %q (%v)", tt.want, b, err)
		}
	}
}
