package game

import (
	"testing"
	"time"

	"mmo-avatar/internal/movement"
)

type commandCount struct {
	name   string
	reason Reason
}

type recordingMetrics struct {
	NopMetrics
	commands []commandCount
}

func (m *recordingMetrics) Command(name string, r Reason) {
	m.commands = append(m.commands, commandCount{name, r})
}

// TestGateRejectsByState tests that commands outside their allowed states
// are rejected without running and still counted.
func TestGateRejectsByState(t *testing.T) {
	tw := newTestWorld(t)
	metrics := &recordingMetrics{}
	gate := NewGate(tw.World, metrics)
	a := tw.addAvatar(t, "alice", village)

	tests := []struct {
		name  string
		state State
		cmd   Command
		want  Reason
	}{
		{"skill while stunned", StateStunned, UseSkill{Index: 0}, ReasonState},
		{"skill while trading", StateTrading, UseSkill{Index: 0}, ReasonState},
		{"trash while dead", StateDead, TrashIn{Index: 0}, ReasonState},
		{"upgrade while dead", StateDead, UpgradeSkill{Index: 1}, ReasonState},
		{"trade lock while idle", StateIdle, TradeOfferLock{}, ReasonState},
		{"craft while casting", StateCasting, Craft{}, ReasonState},
		{"respawn while alive", StateIdle, Respawn{}, ReasonOK},
		{"cancel while crafting", StateCrafting, CancelAction{}, ReasonOK},
		{"target while stunned", StateStunned, SetTarget{}, ReasonOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.State = tt.state
			if r := gate.Execute(a, tt.cmd); r != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, r)
			}
		})
	}
	if len(metrics.commands) != len(tests) {
		t.Fatalf("Expected %d counted commands, got %d", len(tests), len(metrics.commands))
	}
	if c := metrics.commands[0]; c.name != "use_skill" || c.reason != ReasonState {
		t.Errorf("Expected use_skill/state, got %s/%s", c.name, c.reason)
	}
}

// TestSetTargetUnknown verifies a target that does not resolve is refused.
func TestSetTargetUnknown(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	if r := tw.gate.Execute(a, SetTarget{Entity: 999}); r != ReasonTarget {
		t.Errorf("Expected target rejection, got %q", r)
	}
	if a.Target != 0 {
		t.Errorf("Expected no target, got %d", a.Target)
	}
}

// TestUseSkillValidation tests the index, learned and cooldown checks.
func TestUseSkillValidation(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)

	if r := tw.gate.Execute(a, UseSkill{Index: 99}); r != ReasonIndex {
		t.Errorf("Expected index rejection, got %q", r)
	}
	if r := tw.gate.Execute(a, UseSkill{Index: skillIndex(t, a, "Fireball")}); r != ReasonResources {
		t.Errorf("Expected unlearned rejection, got %q", r)
	}
	if a.PendingSkill != -1 {
		t.Errorf("Expected no pending skill, got %d", a.PendingSkill)
	}
}

// TestUpgradeSkill tests skill experience, level and predecessor
// requirements.
func TestUpgradeSkill(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	fireball := skillIndex(t, a, "Fireball")
	blow := skillIndex(t, a, "Stunning Blow")

	a.SkillExperience = 5
	if r := tw.gate.Execute(a, UpgradeSkill{Index: fireball}); r != ReasonResources {
		t.Errorf("Expected resources rejection, got %q", r)
	}
	a.SkillExperience = 10
	if r := tw.gate.Execute(a, UpgradeSkill{Index: fireball}); r != ReasonOK {
		t.Fatalf("Expected upgrade, got %q", r)
	}
	if a.Skills[fireball].Level != 1 || a.SkillExperience != 0 {
		t.Errorf("Expected level 1 and 0 left, got %d and %d", a.Skills[fireball].Level, a.SkillExperience)
	}

	a.Level = 3
	a.SkillExperience = 100
	if r := tw.gate.Execute(a, UpgradeSkill{Index: blow}); r != ReasonResources {
		t.Errorf("Expected predecessor rejection, got %q", r)
	}
	a.Skills[fireball].Level = 2
	if r := tw.gate.Execute(a, UpgradeSkill{Index: blow}); r != ReasonOK {
		t.Errorf("Expected upgrade with predecessor, got %q", r)
	}
	if a.SkillExperience != 50 {
		t.Errorf("Expected 50 left, got %d", a.SkillExperience)
	}

	if r := tw.gate.Execute(a, UpgradeSkill{Index: skillIndex(t, a, "Normal Attack")}); r != ReasonContent {
		t.Errorf("Expected max level rejection, got %q", r)
	}
}

// TestInventoryCommands tests swap, split, merge and trash.
func TestInventoryCommands(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	potion := itemHash("Health Potion")
	if a.Inventory[0].Hash != potion || a.Inventory[0].Amount != 5 {
		t.Fatalf("Expected 5 potions in slot 0, got %+v", a.Inventory[0])
	}

	if r := tw.gate.Execute(a, SplitInventory{From: 0, To: 5}); r != ReasonOK {
		t.Fatalf("Split rejected: %q", r)
	}
	if a.Inventory[0].Amount != 3 || a.Inventory[5].Amount != 2 {
		t.Errorf("Expected 3 and 2, got %d and %d", a.Inventory[0].Amount, a.Inventory[5].Amount)
	}
	if r := tw.gate.Execute(a, SplitInventory{From: 0, To: 1}); r != ReasonResources {
		t.Errorf("Expected split onto an occupied slot rejected, got %q", r)
	}
	if r := tw.gate.Execute(a, MergeInventory{From: 5, To: 0}); r != ReasonOK {
		t.Fatalf("Merge rejected: %q", r)
	}
	if a.Inventory[0].Amount != 5 || !a.Inventory[5].Empty() {
		t.Errorf("Expected merged stack of 5, got %d and %d", a.Inventory[0].Amount, a.Inventory[5].Amount)
	}
	if r := tw.gate.Execute(a, MergeInventory{From: 0, To: 1}); r != ReasonResources {
		t.Errorf("Expected merge of different items rejected, got %q", r)
	}

	if r := tw.gate.Execute(a, SwapInventory{From: 0, To: 0}); r != ReasonIndex {
		t.Errorf("Expected swap with itself rejected, got %q", r)
	}
	if r := tw.gate.Execute(a, SwapInventory{From: 0, To: 10}); r != ReasonOK {
		t.Errorf("Swap rejected: %q", r)
	}
	if a.Inventory[10].Hash != potion || !a.Inventory[0].Empty() {
		t.Error("Expected potions moved to slot 10")
	}

	// slot 2 holds the indestructible ring
	if r := tw.gate.Execute(a, TrashIn{Index: 2}); r != ReasonContent {
		t.Errorf("Expected ring trash rejected, got %q", r)
	}
	if r := tw.gate.Execute(a, TrashIn{Index: 10}); r != ReasonOK {
		t.Fatalf("Trash rejected: %q", r)
	}
	if a.Trash.Hash != potion || !a.Inventory[10].Empty() {
		t.Error("Expected potions in the trash")
	}
	if r := tw.gate.Execute(a, TrashOut{Index: 2}); r != ReasonContent {
		t.Errorf("Expected trash out onto the ring rejected, got %q", r)
	}
	if r := tw.gate.Execute(a, TrashOut{Index: 0}); r != ReasonOK {
		t.Errorf("Trash out rejected: %q", r)
	}
	if a.Inventory[0].Amount != 5 || !a.Trash.Empty() {
		t.Error("Expected potions back from the trash")
	}
}

// TestUseItem tests healing and the shared item cooldown.
func TestUseItem(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	a.Health = 40

	if r := tw.gate.Execute(a, UseItem{Index: 0}); r != ReasonOK {
		t.Fatalf("UseItem rejected: %q", r)
	}
	if a.Health != 90 || a.Inventory[0].Amount != 4 {
		t.Errorf("Expected 90 health and 4 potions, got %d and %d", a.Health, a.Inventory[0].Amount)
	}
	if r := tw.gate.Execute(a, UseItem{Index: 0}); r != ReasonCooldown {
		t.Errorf("Expected cooldown, got %q", r)
	}
	tw.clk.Advance(2 * time.Second)
	if r := tw.gate.Execute(a, UseItem{Index: 0}); r != ReasonOK {
		t.Errorf("Expected use after cooldown, got %q", r)
	}
	if a.Health != 100 {
		t.Errorf("Expected health capped at 100, got %d", a.Health)
	}
	if r := tw.gate.Execute(a, UseItem{Index: 1}); r != ReasonContent {
		t.Errorf("Expected sword not usable, got %q", r)
	}
}

// TestEquip tests category and level checks and the stat refresh.
func TestEquip(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	a.InventoryAdd(itemHash("Stone Axe"), 1)
	axe := -1
	for i, s := range a.Inventory {
		if s.Hash == itemHash("Stone Axe") {
			axe = i
		}
	}

	if r := tw.gate.Execute(a, SwapInventoryEquip{Inventory: axe, Equipment: 0}); r != ReasonContent {
		t.Errorf("Expected level requirement rejection, got %q", r)
	}
	if r := tw.gate.Execute(a, SwapInventoryEquip{Inventory: 2, Equipment: 0}); r != ReasonContent {
		t.Errorf("Expected ring refused by the weapon slot, got %q", r)
	}
	if r := tw.gate.Execute(a, SwapInventoryEquip{Inventory: 2, Equipment: 3}); r != ReasonOK {
		t.Fatalf("Expected ring equipped, got %q", r)
	}
	if a.ManaMax() != 100 {
		t.Errorf("Expected 100 mana max with the ring, got %d", a.ManaMax())
	}
	a.Mana = 100

	if r := tw.gate.Execute(a, SwapInventoryEquip{Inventory: 2, Equipment: 3}); r != ReasonOK {
		t.Fatalf("Expected ring unequipped, got %q", r)
	}
	if a.Mana != 80 {
		t.Errorf("Expected mana clamped to 80, got %d", a.Mana)
	}
}

// TestLoot tests taking gold and items from a dead monster in range.
func TestLoot(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	m := tw.addMonster(t, "Bandit", movement.Vec2{X: 17.5, Y: 40.5})
	a.Target = m.ID()

	if r := tw.gate.Execute(a, TakeLootGold{}); r != ReasonTarget {
		t.Errorf("Expected living monster refused, got %q", r)
	}

	m.Health = 0
	m.LootGold = 12
	m.LootItems = []ItemStack{{Hash: itemHash("Wood"), Amount: 1}}
	if r := tw.gate.Execute(a, TakeLootGold{}); r != ReasonOK {
		t.Fatalf("TakeLootGold rejected: %q", r)
	}
	if a.Gold != 62 || m.LootGold != 0 {
		t.Errorf("Expected 62 gold and none left, got %d and %d", a.Gold, m.LootGold)
	}
	if r := tw.gate.Execute(a, TakeLootGold{}); r != ReasonResources {
		t.Errorf("Expected empty gold refused, got %q", r)
	}
	if r := tw.gate.Execute(a, TakeLootItem{Index: 0}); r != ReasonOK {
		t.Fatalf("TakeLootItem rejected: %q", r)
	}
	if a.Count(itemHash("Wood")) != 1 || len(m.LootItems) != 0 {
		t.Error("Expected the wood moved to the inventory")
	}

	far := tw.addMonster(t, "Bandit", movement.Vec2{X: 30.5, Y: 40.5})
	far.Health = 0
	far.LootGold = 5
	a.Target = far.ID()
	if r := tw.gate.Execute(a, TakeLootGold{}); r != ReasonRange {
		t.Errorf("Expected range rejection, got %q", r)
	}
}

// TestPartyCommands tests invite, accept and leave through the gate.
func TestPartyCommands(t *testing.T) {
	tw := newTestWorld(t)
	alice := tw.addAvatar(t, "alice", village)
	bob := tw.addAvatar(t, "bob", movement.Vec2{X: 16.5, Y: 40.5})
	carol := tw.addAvatar(t, "carol", movement.Vec2{X: 17.5, Y: 40.5})

	alice.Target = bob.ID()
	if r := tw.gate.Execute(alice, PartyInvite{}); r != ReasonOK {
		t.Fatalf("PartyInvite rejected: %q", r)
	}
	if n, ok := hasNotice(bob, "party_invite"); !ok || n.Data != "alice" {
		t.Error("Expected bob to be told about the invite")
	}
	if r := tw.gate.Execute(carol, PartyAccept{Leader: "alice"}); r != ReasonTarget {
		t.Errorf("Expected uninvited accept refused, got %q", r)
	}
	if r := tw.gate.Execute(bob, PartyAccept{Leader: "alice"}); r != ReasonOK {
		t.Fatalf("PartyAccept rejected: %q", r)
	}
	p, ok := tw.Parties.PartyOf("bob")
	if !ok || p.Leader != "alice" || len(p.Members) != 2 {
		t.Fatalf("Expected bob in alice's party, got %+v", p)
	}

	bob.Target = carol.ID()
	if r := tw.gate.Execute(bob, PartyInvite{}); r != ReasonState {
		t.Errorf("Expected non-leader invite refused, got %q", r)
	}

	if r := tw.gate.Execute(alice, PartyLeave{}); r != ReasonOK {
		t.Fatalf("PartyLeave rejected: %q", r)
	}
	if _, ok := tw.Parties.PartyOf("bob"); ok {
		t.Error("Expected the two member party disbanded")
	}
	if r := tw.gate.Execute(alice, PartyLeave{}); r != ReasonState {
		t.Errorf("Expected leave without a party refused, got %q", r)
	}
}

// TestAttributePoints tests spending attribute points on strength and
// intelligence.
func TestAttributePoints(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)

	if a.AttributesSpendable() != 2 {
		t.Fatalf("Expected 2 points at level 1, got %d", a.AttributesSpendable())
	}
	if r := tw.gate.Execute(a, IncreaseStrength{}); r != ReasonOK {
		t.Fatalf("IncreaseStrength rejected: %q", r)
	}
	if r := tw.gate.Execute(a, IncreaseIntelligence{}); r != ReasonOK {
		t.Fatalf("IncreaseIntelligence rejected: %q", r)
	}
	// 1% of base each
	if a.HealthMax() != 101 || a.ManaMax() != 81 {
		t.Errorf("Expected 101 health and 81 mana max, got %d and %d", a.HealthMax(), a.ManaMax())
	}
	if r := tw.gate.Execute(a, IncreaseStrength{}); r != ReasonResources {
		t.Errorf("Expected no points left, got %q", r)
	}

	a.Level = 2
	a.State = StateDead
	if r := tw.gate.Execute(a, IncreaseIntelligence{}); r != ReasonState {
		t.Errorf("Expected the dead refused, got %q", r)
	}
	a.State = StateIdle
	if r := tw.gate.Execute(a, IncreaseIntelligence{}); r != ReasonOK {
		t.Errorf("Expected a point after leveling, got %q", r)
	}
	if a.Strength != 1 || a.Intelligence != 2 {
		t.Errorf("Expected 1 strength and 2 intelligence, got %d and %d", a.Strength, a.Intelligence)
	}
}

// TestMergeEquipInventory tests moving an equipped stack back onto the
// inventory.
func TestMergeEquipInventory(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	a.Equipment[0] = ItemStack{Hash: itemHash("Health Potion"), Amount: 3}

	if r := tw.gate.Execute(a, MergeEquipInventory{Equipment: 0, Inventory: 1}); r != ReasonResources {
		t.Errorf("Expected a different item refused, got %q", r)
	}
	if r := tw.gate.Execute(a, MergeEquipInventory{Equipment: 9, Inventory: 0}); r != ReasonIndex {
		t.Errorf("Expected a bad equipment index refused, got %q", r)
	}
	if r := tw.gate.Execute(a, MergeEquipInventory{Equipment: 0, Inventory: 0}); r != ReasonOK {
		t.Fatalf("MergeEquipInventory rejected: %q", r)
	}
	if a.Inventory[0].Amount != 8 || !a.Equipment[0].Empty() {
		t.Errorf("Expected 8 potions and an empty slot, got %d and %+v", a.Inventory[0].Amount, a.Equipment[0])
	}
	if r := tw.gate.Execute(a, MergeEquipInventory{Equipment: 0, Inventory: 0}); r != ReasonResources {
		t.Errorf("Expected an empty slot refused, got %q", r)
	}
}

// TestPartyManagementCommands tests decline, kick, dismiss and the share
// switches through the gate.
func TestPartyManagementCommands(t *testing.T) {
	tw := newTestWorld(t)
	alice := tw.addAvatar(t, "alice", village)
	bob := tw.addAvatar(t, "bob", movement.Vec2{X: 16.5, Y: 40.5})
	carol := tw.addAvatar(t, "carol", movement.Vec2{X: 17.5, Y: 40.5})

	alice.Target = carol.ID()
	tw.gate.Execute(alice, PartyInvite{})
	if r := tw.gate.Execute(carol, PartyDecline{Leader: "alice"}); r != ReasonOK {
		t.Fatalf("PartyDecline rejected: %q", r)
	}
	if n, ok := hasNotice(alice, "party_declined"); !ok || n.Data != "carol" {
		t.Error("Expected alice to be told carol declined")
	}
	if r := tw.gate.Execute(carol, PartyAccept{Leader: "alice"}); r != ReasonTarget {
		t.Errorf("Expected a declined invite gone, got %q", r)
	}

	for _, m := range []*Avatar{bob, carol} {
		alice.Target = m.ID()
		tw.gate.Execute(alice, PartyInvite{})
		if r := tw.gate.Execute(m, PartyAccept{Leader: "alice"}); r != ReasonOK {
			t.Fatalf("PartyAccept rejected for %s: %q", m.Name(), r)
		}
	}

	if r := tw.gate.Execute(bob, PartySetGoldShare{On: false}); r != ReasonState {
		t.Errorf("Expected a member refused the gold switch, got %q", r)
	}
	if r := tw.gate.Execute(alice, PartySetGoldShare{On: false}); r != ReasonOK {
		t.Fatalf("PartySetGoldShare rejected: %q", r)
	}
	if r := tw.gate.Execute(alice, PartySetExperienceShare{On: false}); r != ReasonOK {
		t.Fatalf("PartySetExperienceShare rejected: %q", r)
	}
	p, _ := tw.Parties.PartyOf("bob")
	if p.ShareGold || p.ShareExperience {
		t.Errorf("Expected both shares off, got %+v", p)
	}

	if r := tw.gate.Execute(bob, PartyKick{Member: "carol"}); r != ReasonState {
		t.Errorf("Expected a member refused kicking, got %q", r)
	}
	if r := tw.gate.Execute(alice, PartyKick{Member: "carol"}); r != ReasonOK {
		t.Fatalf("PartyKick rejected: %q", r)
	}
	if n, ok := hasNotice(carol, "party_kicked"); !ok || n.Data != "alice" {
		t.Error("Expected carol told about the kick")
	}
	if _, ok := tw.Parties.PartyOf("carol"); ok {
		t.Error("Expected carol out of the party")
	}

	if r := tw.gate.Execute(bob, PartyDismiss{}); r != ReasonState {
		t.Errorf("Expected a member refused dismissing, got %q", r)
	}
	if r := tw.gate.Execute(alice, PartyDismiss{}); r != ReasonOK {
		t.Fatalf("PartyDismiss rejected: %q", r)
	}
	if _, ok := tw.Parties.PartyOf("bob"); ok {
		t.Error("Expected the party dismissed")
	}
	if r := tw.gate.Execute(alice, PartyDismiss{}); r != ReasonState {
		t.Errorf("Expected dismiss without a party refused, got %q", r)
	}
}
