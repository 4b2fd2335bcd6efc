package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"mmo-avatar/internal/game"
	"mmo-avatar/internal/movement"
)

var ErrUnknownCommand = errors.New("api: unknown command")

// clientMessage is the JSON form of every client command. Only the fields
// a command uses are read.
type clientMessage struct {
	Type      string        `json:"type"`
	Entity    uint32        `json:"entity"`
	Index     int           `json:"index"`
	From      int           `json:"from"`
	To        int           `json:"to"`
	Equipment int           `json:"equipment"`
	Offer     int           `json:"offer"`
	Amount    int64         `json:"amount"`
	Recipe    string        `json:"recipe"`
	Indices   []int         `json:"indices"`
	Leader    string        `json:"leader"`
	Member    string        `json:"member"`
	On        bool          `json:"on"`
	Look      movement.Vec2 `json:"look"`
	Position  movement.Vec2 `json:"position"`
}

// DecodeCommand parses a JSON text frame into a game command.
func DecodeCommand(data []byte) (game.Command, error) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	switch m.Type {
	case "report_position":
		return game.ReportPosition{Position: m.Position}, nil
	case "set_target":
		return game.SetTarget{Entity: game.EntityID(m.Entity)}, nil
	case "use_skill":
		return game.UseSkill{Index: m.Index, Look: m.Look}, nil
	case "upgrade_skill":
		return game.UpgradeSkill{Index: m.Index}, nil
	case "increase_strength":
		return game.IncreaseStrength{}, nil
	case "increase_intelligence":
		return game.IncreaseIntelligence{}, nil
	case "cancel_action":
		return game.CancelAction{}, nil
	case "respawn":
		return game.Respawn{}, nil
	case "swap_inventory":
		return game.SwapInventory{From: m.From, To: m.To}, nil
	case "split_inventory":
		return game.SplitInventory{From: m.From, To: m.To}, nil
	case "merge_inventory":
		return game.MergeInventory{From: m.From, To: m.To}, nil
	case "trash_in":
		return game.TrashIn{Index: m.Index}, nil
	case "trash_out":
		return game.TrashOut{Index: m.Index}, nil
	case "use_item":
		return game.UseItem{Index: m.Index}, nil
	case "swap_inventory_equip":
		return game.SwapInventoryEquip{Inventory: m.Index, Equipment: m.Equipment}, nil
	case "merge_inventory_equip":
		return game.MergeInventoryEquip{Inventory: m.Index, Equipment: m.Equipment}, nil
	case "merge_equip_inventory":
		return game.MergeEquipInventory{Equipment: m.Equipment, Inventory: m.Index}, nil
	case "take_loot_gold":
		return game.TakeLootGold{}, nil
	case "take_loot_item":
		return game.TakeLootItem{Index: m.Index}, nil
	case "party_invite":
		return game.PartyInvite{}, nil
	case "party_accept":
		return game.PartyAccept{Leader: m.Leader}, nil
	case "party_decline":
		return game.PartyDecline{Leader: m.Leader}, nil
	case "party_leave":
		return game.PartyLeave{}, nil
	case "party_kick":
		return game.PartyKick{Member: m.Member}, nil
	case "party_dismiss":
		return game.PartyDismiss{}, nil
	case "party_set_experience_share":
		return game.PartySetExperienceShare{On: m.On}, nil
	case "party_set_gold_share":
		return game.PartySetGoldShare{On: m.On}, nil
	case "npc_buy_item":
		return game.NpcBuyItem{Index: m.Index, Amount: int(m.Amount)}, nil
	case "npc_sell_item":
		return game.NpcSellItem{Index: m.Index, Amount: int(m.Amount)}, nil
	case "npc_teleport":
		return game.NpcTeleport{}, nil
	case "trade_request_send":
		return game.TradeRequestSend{}, nil
	case "trade_request_accept":
		return game.TradeRequestAccept{}, nil
	case "trade_request_decline":
		return game.TradeRequestDecline{}, nil
	case "trade_cancel":
		return game.TradeCancel{}, nil
	case "trade_offer_lock":
		return game.TradeOfferLock{}, nil
	case "trade_offer_gold":
		return game.TradeOfferGold{Amount: m.Amount}, nil
	case "trade_offer_item":
		return game.TradeOfferItem{InventoryIndex: m.Index, OfferIndex: m.Offer}, nil
	case "trade_offer_item_clear":
		return game.TradeOfferItemClear{OfferIndex: m.Offer}, nil
	case "trade_offer_accept":
		return game.TradeOfferAccept{}, nil
	case "craft":
		return game.Craft{Recipe: m.Recipe, Indices: m.Indices}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, m.Type)
	}
}

// DecodePosition parses a binary position report frame.
func DecodePosition(data []byte) (game.ReportPosition, error) {
	msg, err := movement.Decode(data)
	if err != nil {
		return game.ReportPosition{}, err
	}
	if msg.Kind != movement.KindPosition {
		return game.ReportPosition{}, fmt.Errorf("%w: %s from client", ErrUnknownCommand, msg.Kind)
	}
	return game.ReportPosition{Position: msg.Position}, nil
}

// serverEvent is the JSON envelope of text frames sent to clients.
type serverEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(serverEvent{Event: event, Data: data})
}
