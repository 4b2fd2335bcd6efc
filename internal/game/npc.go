package game

import (
	"go.uber.org/zap"

	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// Npc is a friendly entity avatars trade with or are ferried by. It cannot
// be attacked and never dies.
type Npc struct {
	Body

	def *content.NpcDefinition

	teleport    movement.Vec2
	hasTeleport bool
}

var _ Entity = (*Npc)(nil)

// NewNpc places an npc of def at position. A teleporting npc sends avatars
// to dest.
func NewNpc(id EntityID, def *content.NpcDefinition, position movement.Vec2) *Npc {
	return &Npc{
		Body: Body{
			id:     id,
			kind:   KindNpc,
			name:   def.Name,
			radius: def.Radius,
			agent:  movement.NewAgent(nil, position, 0),
			Level:  1,
			Health: 1,
		},
		def: def,
	}
}

// SetTeleport makes the npc send avatars to dest.
func (n *Npc) SetTeleport(dest movement.Vec2) {
	n.teleport, n.hasTeleport = dest, true
}

func (n *Npc) Def() *content.NpcDefinition { return n.def }
func (n *Npc) HealthMax() int { return 1 }
func (n *Npc) Defense() int { return 0 }

// Teleport returns the destination, if the npc has one.
func (n *Npc) Teleport() (movement.Vec2, bool) { return n.teleport, n.hasTeleport }

// npcTarget resolves the targeted npc within interaction range.
func npcTarget(w *World, a *Avatar) (*Npc, Reason) {
	e, ok := w.Registry.Resolve(a.Target)
	if !ok {
		return nil, ReasonTarget
	}
	n, ok := e.(*Npc)
	if !ok {
		return nil, ReasonTarget
	}
	if ClosestDistance(a, n) > w.Rules.InteractionRange {
		return nil, ReasonRange
	}
	return n, ReasonOK
}

// NpcBuyItem buys Amount of the targeted npc's sale item at Index.
type NpcBuyItem struct {
	Index, Amount int
}

func (NpcBuyItem) Name() string { return "npc_buy_item" }
func (NpcBuyItem) allowed() stateSet { return idleStates }
func (c NpcBuyItem) execute(w *World, a *Avatar) Reason {
	n, r := npcTarget(w, a)
	if r != ReasonOK {
		return r
	}
	if c.Index < 0 || c.Index >= len(n.def.SaleItems) {
		return ReasonIndex
	}
	def, err := w.Catalog.ItemByName(n.def.SaleItems[c.Index])
	if err != nil {
		w.Log.Warn("npc sells unknown item", zap.String("npc", n.name), zap.Error(err))
		return ReasonContent
	}
	if c.Amount < 1 || c.Amount > def.MaxStack {
		return ReasonIndex
	}
	price := def.BuyPrice * int64(c.Amount)
	if a.Gold < price || !a.CanAdd(def.Hash, c.Amount) {
		return ReasonResources
	}
	a.Gold -= price
	a.InventoryAdd(def.Hash, c.Amount)
	return ReasonOK
}

// NpcSellItem sells Amount of the inventory stack at Index to the targeted
// npc.
type NpcSellItem struct {
	Index, Amount int
}

func (NpcSellItem) Name() string { return "npc_sell_item" }
func (NpcSellItem) allowed() stateSet { return idleStates }
func (c NpcSellItem) execute(w *World, a *Avatar) Reason {
	if _, r := npcTarget(w, a); r != ReasonOK {
		return r
	}
	if !a.validInventoryIndex(c.Index) || a.Inventory[c.Index].Empty() {
		return ReasonIndex
	}
	slot := &a.Inventory[c.Index]
	def, err := w.Catalog.Item(slot.Hash)
	if err != nil || !def.Sellable {
		return ReasonContent
	}
	if c.Amount < 1 || c.Amount > slot.Amount {
		return ReasonIndex
	}
	a.Gold += def.SellPrice * int64(c.Amount)
	slot.Amount -= c.Amount
	if slot.Amount == 0 {
		*slot = ItemStack{}
	}
	return ReasonOK
}

// NpcTeleport is ferried to the targeted npc's destination.
type NpcTeleport struct{}

func (NpcTeleport) Name() string { return "npc_teleport" }
func (NpcTeleport) allowed() stateSet { return idleStates }
func (NpcTeleport) execute(w *World, a *Avatar) Reason {
	n, r := npcTarget(w, a)
	if r != ReasonOK {
		return r
	}
	dest, ok := n.Teleport()
	if !ok {
		return ReasonContent
	}
	a.sync.Warp(dest)
	// nothing left to do with the npc once away from it
	a.Target = 0
	w.record(EventTypeTeleport, a.name, TeleportPayload{Entity: uint32(a.id), Npc: n.name, X: dest.X, Y: dest.Y})
	return ReasonOK
}
