package game

import (
	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
)

// Event is a condition the state machine reacts to.
type Event uint8

const (
	EventNone Event = iota
	EventDied
	EventTargetDisappeared
	EventTargetDied
	EventSkillRequest
	EventSkillFinished
	EventMoveStart
	EventMoveEnd
	EventTradeStarted
	EventTradeDone
	EventCraftingStarted
	EventCraftingDone
	EventStunned
	EventCancelAction
	EventRespawn
)

var eventNames = [...]string{
	EventNone:              "none",
	EventDied:              "died",
	EventTargetDisappeared: "target_disappeared",
	EventTargetDied:        "target_died",
	EventSkillRequest:      "skill_request",
	EventSkillFinished:     "skill_finished",
	EventMoveStart:         "move_start",
	EventMoveEnd:           "move_end",
	EventTradeStarted:      "trade_started",
	EventTradeDone:         "trade_done",
	EventCraftingStarted:   "crafting_started",
	EventCraftingDone:      "crafting_done",
	EventStunned:           "stunned",
	EventCancelAction:      "cancel_action",
	EventRespawn:           "respawn",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Evaluator answers event predicates for one avatar against the world.
// Predicates read state only, except the one-shot flag events which consume
// their flag. A predicate that panics reports false.
type Evaluator struct {
	w *World
}

// NewEvaluator binds an evaluator to a world.
func NewEvaluator(w *World) Evaluator { return Evaluator{w: w} }

// Happened evaluates ev for a.
func (e Evaluator) Happened(a *Avatar, ev Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.w.Log.Warn("event predicate panicked",
				zap.String("avatar", a.name),
				zap.Stringer("event", ev),
				zap.Any("panic", r))
			ok = false
		}
	}()
	switch ev {
	case EventDied:
		return e.Died(a)
	case EventTargetDisappeared:
		return e.TargetDisappeared(a)
	case EventTargetDied:
		return e.TargetDied(a)
	case EventSkillRequest:
		return e.SkillRequest(a)
	case EventSkillFinished:
		return e.SkillFinished(a)
	case EventMoveStart:
		return e.MoveStart(a)
	case EventMoveEnd:
		return e.MoveEnd(a)
	case EventTradeStarted:
		return e.TradeStarted(a)
	case EventTradeDone:
		return e.TradeDone(a)
	case EventCraftingStarted:
		return a.Flags.Take(FlagCraftingStarted)
	case EventCraftingDone:
		return e.CraftingDone(a)
	case EventStunned:
		return e.Stunned(a)
	case EventCancelAction:
		return a.Flags.Take(FlagCancelAction)
	case EventRespawn:
		return a.Flags.Take(FlagRespawn)
	}
	return false
}

func (e Evaluator) Died(a *Avatar) bool { return a.Health <= 0 }

// TargetDisappeared is true without a target or when it no longer resolves.
func (e Evaluator) TargetDisappeared(a *Avatar) bool {
	_, ok := e.w.Registry.Resolve(a.Target)
	return !ok
}

// TargetDied is true when the target still resolves and is dead.
func (e Evaluator) TargetDied(a *Avatar) bool {
	t, ok := e.w.Registry.Resolve(a.Target)
	return ok && !t.Base().Alive()
}

func (e Evaluator) SkillRequest(a *Avatar) bool {
	return a.PendingSkill >= 0 && a.PendingSkill < len(a.Skills)
}

// SkillFinished is true once the cast timer of the current skill elapsed.
func (e Evaluator) SkillFinished(a *Avatar) bool {
	if a.CurrentSkill < 0 || a.CurrentSkill >= len(a.Skills) {
		return false
	}
	return clock.Elapsed(e.w.Clock, a.Skills[a.CurrentSkill].CastEnd)
}

func (e Evaluator) MoveStart(a *Avatar) bool { return a.State != StateMoving && a.IsMoving() }
func (e Evaluator) MoveEnd(a *Avatar) bool { return a.State == StateMoving && !a.IsMoving() }

// TradeStarted is true when the avatar that invited us was in turn invited
// by us.
func (e Evaluator) TradeStarted(a *Avatar) bool {
	inviter, ok := e.w.Registry.AvatarByName(a.Trade.RequestFrom)
	return ok && inviter.Trade.RequestFrom == a.name
}

// TradeDone is true once the invitation was cleared while trading.
func (e Evaluator) TradeDone(a *Avatar) bool {
	return a.State == StateTrading && a.Trade.RequestFrom == ""
}

func (e Evaluator) CraftingDone(a *Avatar) bool {
	return a.State == StateCrafting && clock.Elapsed(e.w.Clock, a.Craft.End)
}

// Stunned is true while the stun timer runs.
func (e Evaluator) Stunned(a *Avatar) bool {
	// strict: a stun ending at this tick's reading is already over
	return e.w.Now() < a.StunEnd
}
