package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/game"
	"mmo-avatar/internal/movement"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSaveLoad tests a snapshot round trip and overwrite.
func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "avatars.db"))

	if _, found, err := s.Load(ctx, "alice"); err != nil || found {
		t.Fatalf("Expected nothing saved, got found=%v err=%v", found, err)
	}

	snap := game.AvatarSnapshot{
		Name:     "alice",
		Level:    4,
		Health:   90,
		Gold:     120,
		Position: movement.Vec2{X: 20.5, Y: 30.5},
		Skills:   []game.SkillSnapshot{{Hash: 42, Level: 2, CooldownRemaining: 1500 * time.Millisecond}},
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, found, err := s.Load(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("Load failed: found=%v err=%v", found, err)
	}
	if got.Level != 4 || got.Gold != 120 || got.Position != snap.Position {
		t.Errorf("Expected the snapshot back, got %+v", got)
	}
	if len(got.Skills) != 1 || got.Skills[0].CooldownRemaining != 1500*time.Millisecond {
		t.Errorf("Expected the skill cooldown kept, got %+v", got.Skills)
	}

	snap.Gold = 5
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got, _ := s.Get(ctx, "alice"); got.Gold != 5 {
		t.Errorf("Expected the overwrite, got %d", got.Gold)
	}
}

// TestListDelete tests listing order and deletion.
func TestListDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "avatars.db"))
	for _, snap := range []game.AvatarSnapshot{
		{Name: "alice", Level: 2},
		{Name: "bob", Level: 7},
		{Name: "carol", Level: 2},
	} {
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"bob", "alice", "carol"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d avatars, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, list[i].Name)
		}
	}
	if list, _ := s.List(ctx, 1); len(list) != 1 {
		t.Errorf("Expected the limit applied, got %d", len(list))
	}

	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestReopen verifies migrations run once and data survives a reopen.
func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "avatars.db")
	s, err := Open(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Save(ctx, game.AvatarSnapshot{Name: "alice", Level: 3}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Close()

	s = openTestStore(t, path)
	if _, found, _ := s.Load(ctx, "alice"); !found {
		t.Error("Expected alice after reopen")
	}
}

// TestCanceledContext verifies calls check the context first.
func TestCanceledContext(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "avatars.db"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, game.AvatarSnapshot{Name: "alice"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, _, err := s.Load(ctx, "alice"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestUpSection tests migration marker parsing.
func TestUpSection(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markers", "CREATE TABLE x (a);", "CREATE TABLE x (a);"},
		{"up only", "-- +migrate Up\nA;", "\nA;"},
		{"up and down", "-- +migrate Up\nA;\n-- +migrate Down\nB;", "\nA;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upSection(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
