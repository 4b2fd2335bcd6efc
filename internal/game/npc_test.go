package game

import (
	"testing"

	"mmo-avatar/internal/movement"
)

func (tw *testWorld) addNpc(t *testing.T, name string, pos movement.Vec2) *Npc {
	t.Helper()
	def, err := tw.Catalog.Npc(name)
	if err != nil {
		t.Fatalf("Unknown npc %s: %v", name, err)
	}
	n := NewNpc(tw.Registry.NextID(), def, pos)
	tw.Registry.AddNpc(n)
	return n
}

// TestNpcBuyItem tests buying from a merchant in range.
func TestNpcBuyItem(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	merchant := tw.addNpc(t, "Merchant", movement.Vec2{X: 17.5, Y: 40.5})
	a.Target = merchant.ID()

	// Health Potion at 20 gold each
	if r := tw.gate.Execute(a, NpcBuyItem{Index: 0, Amount: 2}); r != ReasonOK {
		t.Fatalf("NpcBuyItem rejected: %q", r)
	}
	if a.Gold != 10 || a.Count(itemHash("Health Potion")) != 7 {
		t.Errorf("Expected 10 gold and 7 potions, got %d and %d", a.Gold, a.Count(itemHash("Health Potion")))
	}

	tests := []struct {
		name string
		cmd  NpcBuyItem
		want Reason
	}{
		{"too poor", NpcBuyItem{Index: 0, Amount: 1}, ReasonResources},
		{"no amount", NpcBuyItem{Index: 0, Amount: 0}, ReasonIndex},
		{"past the stack", NpcBuyItem{Index: 4, Amount: 100}, ReasonIndex},
		{"unknown index", NpcBuyItem{Index: 9, Amount: 1}, ReasonIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := tw.gate.Execute(a, tt.cmd); r != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, r)
			}
		})
	}
	if a.Gold != 10 {
		t.Errorf("Expected rejected buys to cost nothing, got %d gold", a.Gold)
	}
}

// TestNpcSellItem tests selling and the sellable flag.
func TestNpcSellItem(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	merchant := tw.addNpc(t, "Merchant", movement.Vec2{X: 17.5, Y: 40.5})
	a.Target = merchant.ID()

	if r := tw.gate.Execute(a, NpcSellItem{Index: 0, Amount: 3}); r != ReasonOK {
		t.Fatalf("NpcSellItem rejected: %q", r)
	}
	if a.Gold != 65 || a.Inventory[0].Amount != 2 {
		t.Errorf("Expected 65 gold and 2 potions left, got %d and %d", a.Gold, a.Inventory[0].Amount)
	}
	if r := tw.gate.Execute(a, NpcSellItem{Index: 0, Amount: 3}); r != ReasonIndex {
		t.Errorf("Expected selling more than the stack refused, got %q", r)
	}
	if r := tw.gate.Execute(a, NpcSellItem{Index: 2, Amount: 1}); r != ReasonContent {
		t.Errorf("Expected the ring refused as unsellable, got %q", r)
	}
	if r := tw.gate.Execute(a, NpcSellItem{Index: 0, Amount: 2}); r != ReasonOK {
		t.Fatalf("NpcSellItem rejected: %q", r)
	}
	if !a.Inventory[0].Empty() {
		t.Errorf("Expected the slot emptied, got %+v", a.Inventory[0])
	}
}

// TestNpcCommandsNeedIdleInRange tests the state and target checks shared by
// every npc command.
func TestNpcCommandsNeedIdleInRange(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	near := tw.addNpc(t, "Merchant", movement.Vec2{X: 17.5, Y: 40.5})
	far := tw.addNpc(t, "Merchant", movement.Vec2{X: 30.5, Y: 40.5})
	m := tw.addMonster(t, "Bandit", movement.Vec2{X: 16.5, Y: 40.5})

	tests := []struct {
		name   string
		state  State
		target EntityID
		want   Reason
	}{
		{"moving", StateMoving, near.ID(), ReasonState},
		{"casting", StateCasting, near.ID(), ReasonState},
		{"trading", StateTrading, near.ID(), ReasonState},
		{"out of range", StateIdle, far.ID(), ReasonRange},
		{"monster target", StateIdle, m.ID(), ReasonTarget},
		{"no target", StateIdle, 0, ReasonTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.State = tt.state
			a.Target = tt.target
			for _, cmd := range []Command{NpcBuyItem{Amount: 1}, NpcSellItem{Amount: 1}, NpcTeleport{}} {
				if r := tw.gate.Execute(a, cmd); r != tt.want {
					t.Errorf("Expected %s refused with %q, got %q", cmd.Name(), tt.want, r)
				}
			}
		})
	}
}

// TestNpcTeleport tests a ferry warping the avatar to its destination.
func TestNpcTeleport(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	merchant := tw.addNpc(t, "Merchant", movement.Vec2{X: 17.5, Y: 40.5})
	ferry := tw.addNpc(t, "Ferryman", movement.Vec2{X: 14.5, Y: 40.5})
	outpost := movement.Vec2{X: 80.5, Y: 20.5}
	ferry.SetTeleport(outpost)

	a.Target = merchant.ID()
	if r := tw.gate.Execute(a, NpcTeleport{}); r != ReasonContent {
		t.Errorf("Expected a merchant to refuse teleporting, got %q", r)
	}

	a.Sync().Flush(nil, false)
	a.Target = ferry.ID()
	if r := tw.gate.Execute(a, NpcTeleport{}); r != ReasonOK {
		t.Fatalf("NpcTeleport rejected: %q", r)
	}
	if a.Position() != outpost {
		t.Errorf("Expected alice at %v, got %v", outpost, a.Position())
	}
	if a.Target != 0 {
		t.Errorf("Expected the target cleared, got %d", a.Target)
	}
	msgs := a.Sync().Flush(nil, false)
	if len(msgs) != 1 || msgs[0].Kind != movement.KindWarp {
		t.Errorf("Expected one warp, got %+v", msgs)
	}
}
