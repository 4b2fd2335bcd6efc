package api

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"mmo-avatar/internal/game"
	"mmo-avatar/internal/movement"
)

// TestDecodeCommand tests JSON command decoding
func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		data string
		want game.Command
	}{
		{"set target", `{"type":"set_target","entity":42}`, game.SetTarget{Entity: 42}},
		{"use skill", `{"type":"use_skill","index":2,"look":{"x":1,"y":0}}`, game.UseSkill{Index: 2, Look: movement.Vec2{X: 1}}},
		{"cancel", `{"type":"cancel_action"}`, game.CancelAction{}},
		{"swap", `{"type":"swap_inventory","from":1,"to":3}`, game.SwapInventory{From: 1, To: 3}},
		{"equip", `{"type":"swap_inventory_equip","index":4,"equipment":0}`, game.SwapInventoryEquip{Inventory: 4}},
		{"party accept", `{"type":"party_accept","leader":"alice"}`, game.PartyAccept{Leader: "alice"}},
		{"offer gold", `{"type":"trade_offer_gold","amount":250}`, game.TradeOfferGold{Amount: 250}},
		{"offer item", `{"type":"trade_offer_item","index":5,"offer":1}`, game.TradeOfferItem{InventoryIndex: 5, OfferIndex: 1}},
		{"craft", `{"type":"craft","recipe":"potion","indices":[0,1]}`, game.Craft{Recipe: "potion", Indices: []int{0, 1}}},
		{"npc buy", `{"type":"npc_buy_item","index":1,"amount":5}`, game.NpcBuyItem{Index: 1, Amount: 5}},
		{"npc sell", `{"type":"npc_sell_item","index":3,"amount":2}`, game.NpcSellItem{Index: 3, Amount: 2}},
		{"unequip merge", `{"type":"merge_equip_inventory","index":6,"equipment":2}`, game.MergeEquipInventory{Equipment: 2, Inventory: 6}},
		{"party kick", `{"type":"party_kick","member":"bob"}`, game.PartyKick{Member: "bob"}},
		{"party decline", `{"type":"party_decline","leader":"alice"}`, game.PartyDecline{Leader: "alice"}},
		{"gold share", `{"type":"party_set_gold_share","on":true}`, game.PartySetGoldShare{On: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeCommand failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

// TestDecodeCommandNames tests that wire type names match command names
func TestDecodeCommandNames(t *testing.T) {
	for _, name := range []string{
		"respawn", "trash_in", "take_loot_gold", "trade_request_send", "trade_offer_accept",
		"increase_strength", "increase_intelligence", "npc_teleport", "party_dismiss", "party_set_experience_share",
	} {
		cmd, err := DecodeCommand([]byte(`{"type":"` + name + `"}`))
		if err != nil {
			t.Fatalf("DecodeCommand(%s) failed: %v", name, err)
		}
		if cmd.Name() != name {
			t.Errorf("Expected name %s, got %s", name, cmd.Name())
		}
	}
}

// TestDecodeCommandErrors tests rejection of bad frames
func TestDecodeCommandErrors(t *testing.T) {
	if _, err := DecodeCommand([]byte(`{"type":"fly"}`)); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
	if _, err := DecodeCommand([]byte(`{type}`)); err == nil {
		t.Error("Expected error for invalid json")
	}
}

// TestDecodePosition tests binary position reports
func TestDecodePosition(t *testing.T) {
	frame := movement.Encode(nil, movement.Message{Kind: movement.KindPosition, Entity: 7, Position: movement.Vec2{X: 15.5, Y: 70.5}})
	cmd, err := DecodePosition(frame)
	if err != nil {
		t.Fatalf("DecodePosition failed: %v", err)
	}
	if cmd.Position != (movement.Vec2{X: 15.5, Y: 70.5}) {
		t.Errorf("Expected (15.5, 70.5), got %v", cmd.Position)
	}

	warp := movement.Encode(nil, movement.Message{Kind: movement.KindWarp, Entity: 7})
	if _, err := DecodePosition(warp); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand for server-only kind, got %v", err)
	}

	if _, err := DecodePosition(frame[:4]); err == nil {
		t.Error("Expected error for short frame")
	}
}

// TestEncodeEvent tests the server event envelope
func TestEncodeEvent(t *testing.T) {
	data, err := encodeEvent("welcome", map[string]any{"entity": 3})
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}
	var got struct {
		Event string         `json:"event"`
		Data  map[string]int `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Event != "welcome" || got.Data["entity"] != 3 {
		t.Errorf("Unexpected envelope %s", data)
	}
}
