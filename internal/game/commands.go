package game

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// ReportPosition is the owner's periodic position report.
type ReportPosition struct {
	Position movement.Vec2
}

func (ReportPosition) Name() string { return "report_position" }

// Every state reports; the synchronizer decides whether to accept.
func (ReportPosition) allowed() stateSet { return anyState }
func (c ReportPosition) execute(w *World, a *Avatar) Reason {
	if a.sync.HandleClientPosition(c.Position) == movement.Corrected {
		return ReasonCorrected
	}
	return ReasonOK
}

// SetTarget selects an entity. While casting it is deferred until the cast
// resolves.
type SetTarget struct {
	Entity EntityID
}

func (SetTarget) Name() string { return "set_target" }
func (SetTarget) allowed() stateSet {
	return states(StateIdle, StateMoving, StateCasting, StateStunned)
}
func (c SetTarget) execute(w *World, a *Avatar) Reason {
	if c.Entity != 0 {
		if _, ok := w.Registry.Resolve(c.Entity); !ok {
			return ReasonTarget
		}
	}
	if a.State == StateCasting {
		a.NextTarget = c.Entity
		return ReasonOK
	}
	a.Target = c.Entity
	return ReasonOK
}

// UseSkill requests a cast. Look is an optional direction for self centred
// skills like slashes.
type UseSkill struct {
	Index int
	Look  movement.Vec2
}

func (UseSkill) Name() string { return "use_skill" }
func (UseSkill) allowed() stateSet { return activeStates }
func (c UseSkill) execute(w *World, a *Avatar) Reason {
	if c.Index < 0 || c.Index >= len(a.Skills) || a.Skills[c.Index].def == nil {
		return ReasonIndex
	}
	s := &a.Skills[c.Index]
	if s.Level <= 0 {
		return ReasonResources
	}
	if !s.Ready(w.Clock) {
		return ReasonCooldown
	}
	if !c.Look.IsZero() {
		a.agent.LookAt(a.Position().Add(c.Look))
	}
	a.PendingSkill = c.Index
	return ReasonOK
}

// UpgradeSkill spends skill experience on the next level of a skill.
type UpgradeSkill struct {
	Index int
}

func (UpgradeSkill) Name() string { return "upgrade_skill" }
func (UpgradeSkill) allowed() stateSet { return anyState &^ states(StateDead) }
func (c UpgradeSkill) execute(w *World, a *Avatar) Reason {
	if c.Index < 0 || c.Index >= len(a.Skills) || a.Skills[c.Index].def == nil {
		return ReasonIndex
	}
	s := &a.Skills[c.Index]
	def := s.def
	next := s.Level + 1
	if s.Level >= def.MaxLevel {
		return ReasonContent
	}
	cost := int64(def.UpgradeRequiredExperience.Get(next))
	if a.Level < def.UpgradeRequiredLevel.Get(next) || a.SkillExperience < cost {
		return ReasonResources
	}
	if def.Predecessor != "" {
		pre, err := w.Catalog.SkillByName(def.Predecessor)
		if err != nil {
			return ReasonContent
		}
		if a.skillLevel(pre.Hash) < def.PredecessorLevel {
			return ReasonResources
		}
	}
	s.Level = next
	a.SkillExperience -= cost
	return ReasonOK
}

// IncreaseStrength spends an attribute point on strength.
type IncreaseStrength struct{}

func (IncreaseStrength) Name() string { return "increase_strength" }
func (IncreaseStrength) allowed() stateSet { return anyState &^ states(StateDead) }
func (IncreaseStrength) execute(w *World, a *Avatar) Reason {
	if !a.Alive() || a.AttributesSpendable() <= 0 {
		return ReasonResources
	}
	a.Strength++
	a.clampVitals()
	return ReasonOK
}

// IncreaseIntelligence spends an attribute point on intelligence.
type IncreaseIntelligence struct{}

func (IncreaseIntelligence) Name() string { return "increase_intelligence" }
func (IncreaseIntelligence) allowed() stateSet { return anyState &^ states(StateDead) }
func (IncreaseIntelligence) execute(w *World, a *Avatar) Reason {
	if !a.Alive() || a.AttributesSpendable() <= 0 {
		return ReasonResources
	}
	a.Intelligence++
	a.clampVitals()
	return ReasonOK
}

func (a *Avatar) skillLevel(hash uint64) int {
	for i := range a.Skills {
		if a.Skills[i].Hash == hash {
			return a.Skills[i].Level
		}
	}
	return 0
}

// CancelAction asks the state machine to drop the current activity.
type CancelAction struct{}

func (CancelAction) Name() string { return "cancel_action" }
func (CancelAction) allowed() stateSet { return anyState }
func (CancelAction) execute(w *World, a *Avatar) Reason {
	a.Flags.Raise(FlagCancelAction)
	return ReasonOK
}

// Respawn asks a dead avatar to come back at the nearest spawn.
type Respawn struct{}

func (Respawn) Name() string { return "respawn" }
func (Respawn) allowed() stateSet { return anyState }
func (Respawn) execute(w *World, a *Avatar) Reason {
	a.Flags.Raise(FlagRespawn)
	return ReasonOK
}

// SwapInventory swaps two inventory slots.
type SwapInventory struct {
	From, To int
}

func (SwapInventory) Name() string { return "swap_inventory" }
func (SwapInventory) allowed() stateSet { return activeStates }
func (c SwapInventory) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.From) || !a.validInventoryIndex(c.To) || c.From == c.To {
		return ReasonIndex
	}
	a.Inventory[c.From], a.Inventory[c.To] = a.Inventory[c.To], a.Inventory[c.From]
	return ReasonOK
}

// SplitInventory moves half a stack into an empty slot.
type SplitInventory struct {
	From, To int
}

func (SplitInventory) Name() string { return "split_inventory" }
func (SplitInventory) allowed() stateSet { return activeStates }
func (c SplitInventory) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.From) || !a.validInventoryIndex(c.To) || c.From == c.To {
		return ReasonIndex
	}
	from, to := &a.Inventory[c.From], &a.Inventory[c.To]
	if from.Amount < 2 || !to.Empty() {
		return ReasonResources
	}
	half := from.Amount / 2
	from.Amount -= half
	*to = ItemStack{Hash: from.Hash, Amount: half}
	return ReasonOK
}

// MergeInventory moves as much of From onto To as the stack limit allows.
type MergeInventory struct {
	From, To int
}

func (MergeInventory) Name() string { return "merge_inventory" }
func (MergeInventory) allowed() stateSet { return activeStates }
func (c MergeInventory) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.From) || !a.validInventoryIndex(c.To) || c.From == c.To {
		return ReasonIndex
	}
	if !mergeStacks(&a.Inventory[c.From], &a.Inventory[c.To], a.maxStack(a.Inventory[c.From].Hash)) {
		return ReasonResources
	}
	return ReasonOK
}

func mergeStacks(from, to *ItemStack, limit int) bool {
	if from.Empty() || to.Empty() || from.Hash != to.Hash || to.Amount >= limit {
		return false
	}
	put := min(limit-to.Amount, from.Amount)
	to.Amount += put
	from.Amount -= put
	if from.Amount == 0 {
		*from = ItemStack{}
	}
	return true
}

// TrashIn swaps a destroyable inventory item with the trash slot.
type TrashIn struct {
	Index int
}

func (TrashIn) Name() string { return "trash_in" }
func (TrashIn) allowed() stateSet { return activeStates }
func (c TrashIn) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Index) || a.Inventory[c.Index].Empty() {
		return ReasonIndex
	}
	def, err := w.Catalog.Item(a.Inventory[c.Index].Hash)
	if err != nil || !def.Destroyable {
		return ReasonContent
	}
	a.Inventory[c.Index], a.Trash = a.Trash, a.Inventory[c.Index]
	return ReasonOK
}

// TrashOut takes the trash item back into an empty or destroyable slot.
type TrashOut struct {
	Index int
}

func (TrashOut) Name() string { return "trash_out" }
func (TrashOut) allowed() stateSet { return activeStates }
func (c TrashOut) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Index) {
		return ReasonIndex
	}
	if slot := a.Inventory[c.Index]; !slot.Empty() {
		def, err := w.Catalog.Item(slot.Hash)
		if err != nil || !def.Destroyable {
			return ReasonContent
		}
	}
	a.Inventory[c.Index], a.Trash = a.Trash, a.Inventory[c.Index]
	return ReasonOK
}

// UseItem consumes one usable item.
type UseItem struct {
	Index int
}

func (UseItem) Name() string { return "use_item" }
func (UseItem) allowed() stateSet { return activeStates }
func (c UseItem) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Index) || a.Inventory[c.Index].Empty() {
		return ReasonIndex
	}
	slot := &a.Inventory[c.Index]
	def, err := w.Catalog.Item(slot.Hash)
	if err != nil {
		w.Log.Warn("unknown item used", zap.Uint64("hash", slot.Hash), zap.Error(err))
		return ReasonContent
	}
	if def.Use == nil || a.Level < def.RequiredLevel {
		return ReasonContent
	}
	key := def.CooldownKey()
	if !clock.Elapsed(w.Clock, a.ItemCooldowns[key]) {
		return ReasonCooldown
	}
	a.Health += def.Use.Health
	a.Mana += def.Use.Mana
	a.clampVitals()
	a.ItemCooldowns[key] = w.Now() + content.Seconds(def.Use.Cooldown)
	slot.Amount--
	if slot.Amount == 0 {
		*slot = ItemStack{}
	}
	return ReasonOK
}

// SwapInventoryEquip equips an inventory item, or unequips into an empty
// inventory slot.
type SwapInventoryEquip struct {
	Inventory, Equipment int
}

func (SwapInventoryEquip) Name() string { return "swap_inventory_equip" }
func (SwapInventoryEquip) allowed() stateSet { return activeStates }
func (c SwapInventoryEquip) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Inventory) || !a.validEquipmentIndex(c.Equipment) {
		return ReasonIndex
	}
	if item := a.Inventory[c.Inventory]; !item.Empty() {
		def, err := w.Catalog.Item(item.Hash)
		if err != nil {
			return ReasonContent
		}
		slot := w.Catalog.Template().Equipment[c.Equipment]
		if !a.canEquip(def, slot) {
			return ReasonContent
		}
	}
	a.Inventory[c.Inventory], a.Equipment[c.Equipment] = a.Equipment[c.Equipment], a.Inventory[c.Inventory]
	a.clampVitals()
	return ReasonOK
}

func (a *Avatar) canEquip(def *content.ItemDefinition, slot content.EquipmentSlot) bool {
	return strings.HasPrefix(def.Category, slot.Category) && a.Level >= def.RequiredLevel
}

// MergeInventoryEquip tops up an equipped stack from the inventory.
type MergeInventoryEquip struct {
	Inventory, Equipment int
}

func (MergeInventoryEquip) Name() string { return "merge_inventory_equip" }
func (MergeInventoryEquip) allowed() stateSet { return activeStates }
func (c MergeInventoryEquip) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Inventory) || !a.validEquipmentIndex(c.Equipment) {
		return ReasonIndex
	}
	from := &a.Inventory[c.Inventory]
	if !mergeStacks(from, &a.Equipment[c.Equipment], a.maxStack(from.Hash)) {
		return ReasonResources
	}
	return ReasonOK
}

// MergeEquipInventory moves an equipped stack onto a matching inventory
// stack.
type MergeEquipInventory struct {
	Equipment, Inventory int
}

func (MergeEquipInventory) Name() string { return "merge_equip_inventory" }
func (MergeEquipInventory) allowed() stateSet { return activeStates }
func (c MergeEquipInventory) execute(w *World, a *Avatar) Reason {
	if !a.validInventoryIndex(c.Inventory) || !a.validEquipmentIndex(c.Equipment) {
		return ReasonIndex
	}
	from := &a.Equipment[c.Equipment]
	if !mergeStacks(from, &a.Inventory[c.Inventory], a.maxStack(from.Hash)) {
		return ReasonResources
	}
	a.clampVitals()
	return ReasonOK
}

// lootTarget resolves a dead monster target within interaction range.
func lootTarget(w *World, a *Avatar) (*Monster, Reason) {
	e, ok := w.Registry.Resolve(a.Target)
	if !ok {
		return nil, ReasonTarget
	}
	m, ok := e.(*Monster)
	if !ok || m.Alive() {
		return nil, ReasonTarget
	}
	if ClosestDistance(a, m) > w.Rules.InteractionRange {
		return nil, ReasonRange
	}
	return m, ReasonOK
}

// TakeLootGold takes the target's gold, shared with the close party.
type TakeLootGold struct{}

func (TakeLootGold) Name() string { return "take_loot_gold" }
func (TakeLootGold) allowed() stateSet { return activeStates }
func (TakeLootGold) execute(w *World, a *Avatar) Reason {
	m, r := lootTarget(w, a)
	if r != ReasonOK {
		return r
	}
	if m.LootGold <= 0 {
		return ReasonResources
	}
	shareGold(w, a, m.LootGold)
	m.LootGold = 0
	return ReasonOK
}

// TakeLootItem takes one item from the target's loot.
type TakeLootItem struct {
	Index int
}

func (TakeLootItem) Name() string { return "take_loot_item" }
func (TakeLootItem) allowed() stateSet { return activeStates }
func (c TakeLootItem) execute(w *World, a *Avatar) Reason {
	m, r := lootTarget(w, a)
	if r != ReasonOK {
		return r
	}
	if c.Index < 0 || c.Index >= len(m.LootItems) {
		return ReasonIndex
	}
	it := m.LootItems[c.Index]
	if !a.InventoryAdd(it.Hash, it.Amount) {
		return ReasonResources
	}
	m.LootItems = append(m.LootItems[:c.Index], m.LootItems[c.Index+1:]...)
	return ReasonOK
}

// PartyInvite invites the targeted avatar into our party.
type PartyInvite struct{}

func (PartyInvite) Name() string { return "party_invite" }
func (PartyInvite) allowed() stateSet { return anyState &^ states(StateDead) }
func (PartyInvite) execute(w *World, a *Avatar) Reason {
	other, ok := w.Registry.Avatar(a.Target)
	if !ok || other.id == a.id || w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.Invite(a.name, other.name, w.Now()); err != nil {
		return partyReason(err)
	}
	other.notify("party_invite", a.name)
	return ReasonOK
}

// PartyAccept joins the party led by Leader.
type PartyAccept struct {
	Leader string
}

func (PartyAccept) Name() string { return "party_accept" }
func (PartyAccept) allowed() stateSet { return anyState &^ states(StateDead) }
func (c PartyAccept) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if _, err := w.Parties.Accept(a.name, c.Leader, w.Now()); err != nil {
		return partyReason(err)
	}
	return ReasonOK
}

// PartyLeave leaves the current party.
type PartyLeave struct{}

func (PartyLeave) Name() string { return "party_leave" }
func (PartyLeave) allowed() stateSet { return anyState }
func (PartyLeave) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.Leave(a.name); err != nil {
		return partyReason(err)
	}
	return ReasonOK
}

// PartyDecline refuses an invite from Leader.
type PartyDecline struct {
	Leader string
}

func (PartyDecline) Name() string { return "party_decline" }
func (PartyDecline) allowed() stateSet { return anyState }
func (c PartyDecline) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.Decline(a.name, c.Leader); err != nil {
		return partyReason(err)
	}
	if leader, ok := w.Registry.AvatarByName(c.Leader); ok {
		leader.notify("party_declined", a.name)
	}
	return ReasonOK
}

// PartyKick removes Member from the party we lead.
type PartyKick struct {
	Member string
}

func (PartyKick) Name() string { return "party_kick" }
func (PartyKick) allowed() stateSet { return anyState &^ states(StateDead) }
func (c PartyKick) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.Kick(a.name, c.Member); err != nil {
		return partyReason(err)
	}
	if member, ok := w.Registry.AvatarByName(c.Member); ok {
		member.notify("party_kicked", a.name)
	}
	return ReasonOK
}

// PartyDismiss disbands the party we lead.
type PartyDismiss struct{}

func (PartyDismiss) Name() string { return "party_dismiss" }
func (PartyDismiss) allowed() stateSet { return anyState &^ states(StateDead) }
func (PartyDismiss) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.Dismiss(a.name); err != nil {
		return partyReason(err)
	}
	return ReasonOK
}

// PartySetExperienceShare turns party experience sharing on or off.
type PartySetExperienceShare struct {
	On bool
}

func (PartySetExperienceShare) Name() string { return "party_set_experience_share" }
func (PartySetExperienceShare) allowed() stateSet { return anyState &^ states(StateDead) }
func (c PartySetExperienceShare) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.SetExperienceShare(a.name, c.On); err != nil {
		return partyReason(err)
	}
	return ReasonOK
}

// PartySetGoldShare turns party gold sharing on or off.
type PartySetGoldShare struct {
	On bool
}

func (PartySetGoldShare) Name() string { return "party_set_gold_share" }
func (PartySetGoldShare) allowed() stateSet { return anyState &^ states(StateDead) }
func (c PartySetGoldShare) execute(w *World, a *Avatar) Reason {
	if w.Parties == nil {
		return ReasonTarget
	}
	if err := w.Parties.SetGoldShare(a.name, c.On); err != nil {
		return partyReason(err)
	}
	return ReasonOK
}

func partyReason(err error) Reason {
	switch {
	case errors.Is(err, ErrPartyFull):
		return ReasonResources
	case errors.Is(err, ErrNotLeader), errors.Is(err, ErrNotInParty):
		return ReasonState
	}
	return ReasonTarget
}
