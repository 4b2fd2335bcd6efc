package game

import (
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
	"mmo-avatar/internal/world"
)

// village is the default map's first spawn point.
var village = movement.Vec2{X: 15.5, Y: 40.5}

type testWorld struct {
	*World
	clk     *clock.Manual
	machine *Machine
	gate    *Gate
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	cat, err := content.Default()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	zone, err := world.Default()
	if err != nil {
		t.Fatalf("Failed to load zone: %v", err)
	}
	clk := clock.NewManual(10 * time.Second)
	w := &World{
		Registry: NewRegistry(),
		Catalog:  cat,
		Clock:    clk,
		Terrain:  zone,
		Parties:  NewPartyManager(),
		Rules:    DefaultRules(),
		Rand:     rand.New(rand.NewSource(1)),
		Log:      zap.NewNop(),
	}
	return &testWorld{
		World:   w,
		clk:     clk,
		machine: NewMachine(w, NewCaster(w), nil),
		gate:    NewGate(w, nil),
	}
}

func (tw *testWorld) addAvatar(t *testing.T, name string, pos movement.Vec2) *Avatar {
	t.Helper()
	a := NewAvatar(tw.World, tw.Registry.NextID(), name, pos)
	if err := tw.Registry.AddAvatar(a); err != nil {
		t.Fatalf("Failed to add avatar %s: %v", name, err)
	}
	return a
}

func (tw *testWorld) addMonster(t *testing.T, name string, pos movement.Vec2) *Monster {
	t.Helper()
	def, err := tw.Catalog.Monster(name)
	if err != nil {
		t.Fatalf("Unknown monster %s: %v", name, err)
	}
	m := NewMonster(tw.Registry.NextID(), def, pos)
	tw.Registry.AddMonster(m)
	return m
}

// tick runs one state machine step and fails the test on error.
func (tw *testWorld) tick(t *testing.T, a *Avatar) State {
	t.Helper()
	s, err := tw.machine.Tick(a)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	return s
}

func skillIndex(t *testing.T, a *Avatar, name string) int {
	t.Helper()
	for i := range a.Skills {
		if a.Skills[i].def.Name == name {
			return i
		}
	}
	t.Fatalf("Skill %s not found", name)
	return -1
}

func itemHash(name string) uint64 { return content.StableHash(name) }

// equip moves the first stack of item from the inventory into slot.
func equip(t *testing.T, tw *testWorld, a *Avatar, item string, slot int) {
	t.Helper()
	for i, s := range a.Inventory {
		if s.Hash == itemHash(item) && !s.Empty() {
			if r := tw.gate.Execute(a, SwapInventoryEquip{Inventory: i, Equipment: slot}); r != ReasonOK {
				t.Fatalf("Failed to equip %s: %q", item, r)
			}
			return
		}
	}
	t.Fatalf("Item %s not in inventory", item)
}

func hasNotice(a *Avatar, kind string) (Notice, bool) {
	for _, n := range a.TakeNotices() {
		if n.Kind == kind {
			return n, true
		}
	}
	return Notice{}, false
}
