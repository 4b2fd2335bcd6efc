package game

import (
	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
)

// TradeStatus is the progress of one side of a trade.
type TradeStatus uint8

const (
	TradeFree TradeStatus = iota
	TradeLocked
	TradeAccepted
)

func (s TradeStatus) String() string {
	switch s {
	case TradeFree:
		return "free"
	case TradeLocked:
		return "locked"
	case TradeAccepted:
		return "accepted"
	}
	return "unknown"
}

// Trading is one side of a trade. RequestFrom names the avatar we invited
// or that invited us; two matching requests start the trade.
type Trading struct {
	RequestFrom string
	Status      TradeStatus
	Gold        int64
	Offer       []int // inventory indices, -1 for an empty offer slot
}

func (t *Trading) reset(slots int) {
	t.RequestFrom = ""
	t.Status = TradeFree
	t.Gold = 0
	if cap(t.Offer) < slots {
		t.Offer = make([]int, slots)
	}
	t.Offer = t.Offer[:slots]
	for i := range t.Offer {
		t.Offer[i] = -1
	}
}

// offerCount counts filled offer slots.
func (t *Trading) offerCount() int {
	n := 0
	for _, idx := range t.Offer {
		if idx >= 0 {
			n++
		}
	}
	return n
}

func (t *Trading) offers(idx int) bool {
	for _, o := range t.Offer {
		if o == idx {
			return true
		}
	}
	return false
}

// CanStartTradeWith reports whether a may invite other: both alive, not
// already trading, close enough and the risky action cooldown elapsed.
func CanStartTradeWith(w *World, a, other *Avatar) bool {
	return other != nil && other.id != a.id &&
		a.Alive() && other.Alive() &&
		a.State != StateTrading && other.State != StateTrading &&
		ClosestDistance(a, other) <= w.Rules.InteractionRange &&
		clock.Elapsed(w.Clock, a.RiskyActionEnd)
}

// tradePartner resolves the avatar a is trading with.
func tradePartner(w *World, a *Avatar) (*Avatar, bool) {
	if a.State != StateTrading {
		return nil, false
	}
	p, ok := w.Registry.AvatarByName(a.Trade.RequestFrom)
	if !ok || p.State != StateTrading || p.Trade.RequestFrom != a.name {
		return nil, false
	}
	return p, true
}

// offerValid checks the offer still matches what a owns.
func offerValid(w *World, a *Avatar) bool {
	if a.Trade.Gold < 0 || a.Trade.Gold > a.Gold {
		return false
	}
	seen := make(map[int]bool, len(a.Trade.Offer))
	for _, idx := range a.Trade.Offer {
		if idx < 0 {
			continue
		}
		if !a.validInventoryIndex(idx) || seen[idx] || a.Inventory[idx].Empty() {
			return false
		}
		seen[idx] = true
		def, err := w.Catalog.Item(a.Inventory[idx].Hash)
		if err != nil || !def.Tradable {
			return false
		}
	}
	return true
}

// exchange swaps the offered items and gold between a and b.
func exchange(a, b *Avatar) {
	take := func(x *Avatar) []ItemStack {
		var out []ItemStack
		for _, idx := range x.Trade.Offer {
			if idx >= 0 {
				out = append(out, x.Inventory[idx])
				x.Inventory[idx] = ItemStack{}
			}
		}
		return out
	}
	put := func(x *Avatar, items []ItemStack) {
		for _, it := range items {
			for i := range x.Inventory {
				if x.Inventory[i].Empty() {
					x.Inventory[i] = it
					break
				}
			}
		}
	}
	fromA, fromB := take(a), take(b)
	put(a, fromB)
	put(b, fromA)
	a.Gold += b.Trade.Gold - a.Trade.Gold
	b.Gold += a.Trade.Gold - b.Trade.Gold
}

// cleanupTrade resets a's side and releases the partner so it sees
// TradeDone.
func cleanupTrade(w *World, a *Avatar) {
	if p, ok := w.Registry.AvatarByName(a.Trade.RequestFrom); ok && p.Trade.RequestFrom == a.name {
		p.Trade.RequestFrom = ""
	}
	a.Trade.reset(w.Rules.TradeSlots)
}

// TradeRequestSend invites the current target to trade.
type TradeRequestSend struct{}

func (TradeRequestSend) Name() string { return "trade_request_send" }
func (TradeRequestSend) allowed() stateSet { return freeStates }
func (TradeRequestSend) execute(w *World, a *Avatar) Reason {
	other, ok := w.Registry.Avatar(a.Target)
	if !ok {
		return ReasonTarget
	}
	if !clock.Elapsed(w.Clock, a.RiskyActionEnd) {
		return ReasonCooldown
	}
	if !CanStartTradeWith(w, a, other) {
		return ReasonRange
	}
	other.Trade.RequestFrom = a.name
	a.RiskyActionEnd = w.Now() + w.Rules.RiskyActionCooldown
	other.notify("trade_request", a.name)
	return ReasonOK
}

// TradeRequestAccept answers the pending invitation, which starts the trade
// on both sides.
type TradeRequestAccept struct{}

func (TradeRequestAccept) Name() string { return "trade_request_accept" }
func (TradeRequestAccept) allowed() stateSet { return freeStates }
func (TradeRequestAccept) execute(w *World, a *Avatar) Reason {
	sender, ok := w.Registry.AvatarByName(a.Trade.RequestFrom)
	if !ok {
		return ReasonTarget
	}
	if a.State == StateTrading || sender.State == StateTrading || !sender.Alive() || !a.Alive() ||
		ClosestDistance(a, sender) > w.Rules.InteractionRange {
		return ReasonRange
	}
	sender.Trade.RequestFrom = a.name
	return ReasonOK
}

// TradeRequestDecline drops the pending invitation.
type TradeRequestDecline struct{}

func (TradeRequestDecline) Name() string { return "trade_request_decline" }
func (TradeRequestDecline) allowed() stateSet { return anyState &^ tradingStates }
func (TradeRequestDecline) execute(w *World, a *Avatar) Reason {
	a.Trade.RequestFrom = ""
	return ReasonOK
}

// TradeCancel leaves the trade through the state machine.
type TradeCancel struct{}

func (TradeCancel) Name() string { return "trade_cancel" }
func (TradeCancel) allowed() stateSet { return tradingStates }
func (TradeCancel) execute(w *World, a *Avatar) Reason {
	a.Flags.Raise(FlagCancelAction)
	return ReasonOK
}

// TradeOfferLock freezes our offer.
type TradeOfferLock struct{}

func (TradeOfferLock) Name() string { return "trade_offer_lock" }
func (TradeOfferLock) allowed() stateSet { return tradingStates }
func (TradeOfferLock) execute(w *World, a *Avatar) Reason {
	if a.Trade.Status != TradeFree {
		return ReasonState
	}
	a.Trade.Status = TradeLocked
	return ReasonOK
}

// TradeOfferGold sets the offered gold.
type TradeOfferGold struct {
	Amount int64
}

func (TradeOfferGold) Name() string { return "trade_offer_gold" }
func (TradeOfferGold) allowed() stateSet { return tradingStates }
func (c TradeOfferGold) execute(w *World, a *Avatar) Reason {
	if a.Trade.Status != TradeFree {
		return ReasonState
	}
	if c.Amount < 0 || c.Amount > a.Gold {
		return ReasonResources
	}
	a.Trade.Gold = c.Amount
	return ReasonOK
}

// TradeOfferItem puts an inventory slot into an offer slot.
type TradeOfferItem struct {
	InventoryIndex int
	OfferIndex     int
}

func (TradeOfferItem) Name() string { return "trade_offer_item" }
func (TradeOfferItem) allowed() stateSet { return tradingStates }
func (c TradeOfferItem) execute(w *World, a *Avatar) Reason {
	if a.Trade.Status != TradeFree {
		return ReasonState
	}
	if !a.validInventoryIndex(c.InventoryIndex) || c.OfferIndex < 0 || c.OfferIndex >= len(a.Trade.Offer) ||
		a.Inventory[c.InventoryIndex].Empty() || a.Trade.offers(c.InventoryIndex) {
		return ReasonIndex
	}
	def, err := w.Catalog.Item(a.Inventory[c.InventoryIndex].Hash)
	if err != nil || !def.Tradable {
		return ReasonContent
	}
	a.Trade.Offer[c.OfferIndex] = c.InventoryIndex
	return ReasonOK
}

// TradeOfferItemClear empties an offer slot.
type TradeOfferItemClear struct {
	OfferIndex int
}

func (TradeOfferItemClear) Name() string { return "trade_offer_item_clear" }
func (TradeOfferItemClear) allowed() stateSet { return tradingStates }
func (c TradeOfferItemClear) execute(w *World, a *Avatar) Reason {
	if a.Trade.Status != TradeFree {
		return ReasonState
	}
	if c.OfferIndex < 0 || c.OfferIndex >= len(a.Trade.Offer) {
		return ReasonIndex
	}
	a.Trade.Offer[c.OfferIndex] = -1
	return ReasonOK
}

// TradeOfferAccept accepts both locked offers. The first accept waits for
// the partner; the second exchanges if both offers are still valid and
// ends the trade either way.
type TradeOfferAccept struct{}

func (TradeOfferAccept) Name() string { return "trade_offer_accept" }
func (TradeOfferAccept) allowed() stateSet { return tradingStates }
func (TradeOfferAccept) execute(w *World, a *Avatar) Reason {
	other, ok := tradePartner(w, a)
	if !ok {
		return ReasonTarget
	}
	if a.Trade.Status != TradeLocked || other.Trade.Status == TradeFree {
		return ReasonState
	}
	if other.Trade.Status != TradeAccepted {
		a.Trade.Status = TradeAccepted
		other.notify("trade_accepted", a.name)
		return ReasonOK
	}

	mine, theirs := a.Trade.offerCount(), other.Trade.offerCount()
	valid := offerValid(w, a) && offerValid(w, other) &&
		a.SlotsFree() >= max(theirs-mine, 0) &&
		other.SlotsFree() >= max(mine-theirs, 0)
	if valid {
		exchange(a, other)
		w.record(EventTypeTrade, a.name, TradePayload{
			A: a.name, B: other.name,
			ItemsA: mine, ItemsB: theirs,
			GoldA: a.Trade.Gold, GoldB: other.Trade.Gold,
		})
		w.Log.Info("trade completed", zap.String("a", a.name), zap.String("b", other.name))
	}
	// both sides see TradeDone next tick
	a.Trade.RequestFrom = ""
	other.Trade.RequestFrom = ""
	if !valid {
		return ReasonResources
	}
	return ReasonOK
}
