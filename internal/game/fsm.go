package game

import (
	"fmt"

	"go.uber.org/zap"

	"mmo-avatar/internal/movement"
)

// Effect is a side effect a transition performs, in order, before the new
// state is assigned.
type Effect uint8

const (
	EffectOnDeath Effect = iota + 1
	EffectResetMovement
	EffectClearTarget
	EffectCancelCast
	EffectTargetInviter
	EffectStartCast
	EffectFinishCast
	EffectUseNextTarget
	EffectDropNextTarget
	EffectDropSkillRequest
	EffectCleanupTrade
	EffectResolveCraft
	EffectAbortCraft
	EffectWarpToSpawn
	EffectRevive
	EffectReportMovedWhileDead
	EffectReportOutOfRange
)

var effectNames = [...]string{
	EffectOnDeath:              "on_death",
	EffectResetMovement:        "reset_movement",
	EffectClearTarget:          "clear_target",
	EffectCancelCast:           "cancel_cast",
	EffectTargetInviter:        "target_inviter",
	EffectStartCast:            "start_cast",
	EffectFinishCast:           "finish_cast",
	EffectUseNextTarget:        "use_next_target",
	EffectDropNextTarget:       "drop_next_target",
	EffectDropSkillRequest:     "drop_skill_request",
	EffectCleanupTrade:         "cleanup_trade",
	EffectResolveCraft:         "resolve_craft",
	EffectAbortCraft:           "abort_craft",
	EffectWarpToSpawn:          "warp_to_spawn",
	EffectRevive:               "revive",
	EffectReportMovedWhileDead: "report_moved_while_dead",
	EffectReportOutOfRange:     "report_out_of_range",
}

func (e Effect) String() string {
	if int(e) < len(effectNames) && effectNames[e] != "" {
		return effectNames[e]
	}
	return "unknown"
}

// Transition is the outcome of one evaluation: the winning event, the state
// it leads to and the effects to run. Event is EventNone when nothing
// matched.
type Transition struct {
	From    State
	Next    State
	Event   Event
	Effects []Effect

	// Destination is where to move to bring an out of range skill into
	// range. Set with EffectReportOutOfRange.
	Destination movement.Vec2
}

func (t Transition) to(next State, ev Event, effects ...Effect) Transition {
	t.Next = next
	t.Event = ev
	t.Effects = effects
	return t
}

// Machine runs the per-avatar state machine.
type Machine struct {
	w       *World
	ev      Evaluator
	cast    *Caster
	metrics Metrics
}

// NewMachine creates a state machine over w.
func NewMachine(w *World, cast *Caster, metrics Metrics) *Machine {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Machine{w: w, ev: NewEvaluator(w), cast: cast, metrics: metrics}
}

// Tick evaluates and applies exactly one transition for a. An invalid state
// is reported as ErrUnknownState and the avatar is put back to IDLE.
func (m *Machine) Tick(a *Avatar) (State, error) {
	t, err := m.Decide(a)
	if err != nil {
		m.w.Log.DPanic("invalid avatar state", zap.String("avatar", a.name), zap.Error(err))
		a.State = StateIdle
		return a.State, err
	}
	m.Apply(a, t)
	return a.State, nil
}

// Decide evaluates the events of a's current state in priority order and
// returns the first match. Apart from consuming one-shot flags it does not
// touch the avatar.
func (m *Machine) Decide(a *Avatar) (Transition, error) {
	t := Transition{From: a.State, Next: a.State}
	switch a.State {
	case StateIdle:
		return m.decideIdle(a, t), nil
	case StateMoving:
		return m.decideMoving(a, t), nil
	case StateCasting:
		return m.decideCasting(a, t), nil
	case StateStunned:
		return m.decideStunned(a, t), nil
	case StateTrading:
		return m.decideTrading(a, t), nil
	case StateCrafting:
		return m.decideCrafting(a, t), nil
	case StateDead:
		return m.decideDead(a, t), nil
	}
	return t, fmt.Errorf("%w: %d", ErrUnknownState, uint8(a.State))
}

func (m *Machine) on(a *Avatar, ev Event) bool { return m.ev.Happened(a, ev) }

// drain consumes one-shot flags the current state ignores, so a request
// raised in the wrong state is not replayed later.
func (m *Machine) drain(a *Avatar, events ...Event) {
	for _, ev := range events {
		m.on(a, ev)
	}
}

func (m *Machine) decideIdle(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned, EffectResetMovement)
	case m.on(a, EventCancelAction):
		return t.to(StateIdle, EventCancelAction, EffectClearTarget)
	case m.on(a, EventTradeStarted):
		return t.to(StateTrading, EventTradeStarted, EffectCancelCast, EffectTargetInviter)
	case m.on(a, EventCraftingStarted):
		return t.to(StateCrafting, EventCraftingStarted, EffectCancelCast)
	case m.on(a, EventMoveStart):
		return t.to(StateMoving, EventMoveStart, EffectCancelCast)
	case m.on(a, EventSkillRequest):
		dest, res := m.cast.Check(a, a.PendingSkill)
		if res == CastOK {
			// commit fully once in range
			return t.to(StateCasting, EventSkillRequest, EffectResetMovement, EffectStartCast)
		}
		if res == CastOutOfRange {
			t = t.to(StateIdle, EventSkillRequest, EffectDropSkillRequest, EffectReportOutOfRange)
			t.Destination = dest
			return t
		}
		return t.to(StateIdle, EventSkillRequest, EffectDropSkillRequest)
	}
	m.drain(a, EventRespawn)
	return t
}

func (m *Machine) decideMoving(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned, EffectResetMovement)
	case m.on(a, EventMoveEnd):
		return t.to(StateIdle, EventMoveEnd)
	case m.on(a, EventCancelAction):
		// the owner stops locally; resetting here would snap it back to the
		// lagging server position
		return t.to(StateIdle, EventCancelAction, EffectCancelCast)
	case m.on(a, EventTradeStarted):
		return t.to(StateTrading, EventTradeStarted, EffectCancelCast, EffectResetMovement, EffectTargetInviter)
	case m.on(a, EventCraftingStarted):
		return t.to(StateCrafting, EventCraftingStarted, EffectCancelCast, EffectResetMovement)
	case m.on(a, EventSkillRequest) && m.castable(a):
		// start as soon as in range and let the agent slide to its final
		// position; client reports are rejected while casting
		return t.to(StateCasting, EventSkillRequest, EffectStartCast)
	}
	// a request that is not castable yet stays pending while moving
	m.drain(a, EventRespawn)
	return t
}

func (m *Machine) decideCasting(a *Avatar, t Transition) Transition {
	// movement does not leave CASTING and is not reset either
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath, EffectUseNextTarget)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned, EffectCancelCast, EffectResetMovement)
	case m.on(a, EventCancelAction):
		return t.to(StateIdle, EventCancelAction, EffectCancelCast, EffectUseNextTarget)
	case m.on(a, EventTradeStarted):
		return t.to(StateTrading, EventTradeStarted,
			EffectCancelCast, EffectResetMovement, EffectTargetInviter, EffectDropNextTarget)
	case m.cancelsOnTargetLoss(a) && m.on(a, EventTargetDisappeared):
		return t.to(StateIdle, EventTargetDisappeared, EffectCancelCast, EffectUseNextTarget)
	case m.cancelsOnTargetLoss(a) && m.on(a, EventTargetDied):
		return t.to(StateIdle, EventTargetDied, EffectCancelCast, EffectUseNextTarget)
	case m.on(a, EventSkillFinished):
		return t.to(StateIdle, EventSkillFinished, EffectFinishCast, EffectUseNextTarget)
	}
	m.drain(a, EventCraftingStarted, EventRespawn)
	return t
}

func (m *Machine) decideStunned(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned)
	}
	// requests raised while stunned are handled by IDLE next tick
	return t.to(StateIdle, EventNone)
}

func (m *Machine) decideTrading(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath, EffectCleanupTrade)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned, EffectCancelCast, EffectResetMovement, EffectCleanupTrade)
	case m.on(a, EventMoveStart):
		return t.to(StateTrading, EventMoveStart, EffectResetMovement)
	case m.on(a, EventCancelAction):
		return t.to(StateIdle, EventCancelAction, EffectCleanupTrade)
	case m.on(a, EventTargetDisappeared):
		return t.to(StateIdle, EventTargetDisappeared, EffectCleanupTrade)
	case m.on(a, EventTargetDied):
		return t.to(StateIdle, EventTargetDied, EffectCleanupTrade)
	case m.on(a, EventTradeDone):
		return t.to(StateIdle, EventTradeDone, EffectCleanupTrade)
	}
	m.drain(a, EventCraftingStarted, EventRespawn)
	return t
}

func (m *Machine) decideCrafting(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventDied):
		return t.to(StateDead, EventDied, EffectOnDeath, EffectAbortCraft)
	case m.on(a, EventStunned):
		return t.to(StateStunned, EventStunned, EffectResetMovement, EffectAbortCraft)
	case m.on(a, EventMoveStart):
		return t.to(StateCrafting, EventMoveStart, EffectResetMovement)
	case m.on(a, EventCraftingDone):
		return t.to(StateIdle, EventCraftingDone, EffectResolveCraft)
	}
	// a started craft cannot be cancelled
	m.drain(a, EventCancelAction, EventRespawn, EventCraftingStarted)
	return t
}

func (m *Machine) decideDead(a *Avatar, t Transition) Transition {
	switch {
	case m.on(a, EventRespawn):
		return t.to(StateIdle, EventRespawn, EffectWarpToSpawn, EffectRevive)
	case m.on(a, EventMoveStart):
		return t.to(StateDead, EventMoveStart, EffectReportMovedWhileDead)
	}
	m.drain(a, EventCancelAction, EventCraftingStarted)
	return t
}

func (m *Machine) castable(a *Avatar) bool {
	_, res := m.cast.Check(a, a.PendingSkill)
	return res == CastOK
}

func (m *Machine) cancelsOnTargetLoss(a *Avatar) bool {
	if a.CurrentSkill < 0 || a.CurrentSkill >= len(a.Skills) {
		return false
	}
	def := a.Skills[a.CurrentSkill].def
	return def != nil && def.CancelCastIfTargetDied
}

// Apply runs t's effects in order and assigns the new state.
func (m *Machine) Apply(a *Avatar, t Transition) {
	for _, eff := range t.Effects {
		m.applyEffect(a, eff, &t)
	}
	a.State = t.Next
	if t.From != t.Next {
		m.metrics.Transition(t.From, t.Next)
		m.w.record(EventTypeStateChange, a.name, StateChangePayload{
			Entity: uint32(a.id),
			From:   t.From.String(),
			To:     t.Next.String(),
			Event:  t.Event.String(),
		})
		a.notify("state", t.Next.String())
	}
}

func (m *Machine) applyEffect(a *Avatar, eff Effect, t *Transition) {
	switch eff {
	case EffectOnDeath:
		m.onDeath(a)
	case EffectResetMovement:
		a.ResetMovement()
	case EffectClearTarget:
		a.Target = 0
	case EffectCancelCast:
		m.cast.CancelCast(a)
	case EffectTargetInviter:
		if inviter, ok := m.w.Registry.AvatarByName(a.Trade.RequestFrom); ok {
			a.Target = inviter.id
		}
	case EffectStartCast:
		m.cast.StartCast(a, a.PendingSkill)
	case EffectFinishCast:
		m.cast.FinishCast(a)
	case EffectUseNextTarget:
		if a.NextTarget != 0 {
			a.Target = a.NextTarget
			a.NextTarget = 0
		}
	case EffectDropNextTarget:
		a.NextTarget = 0
	case EffectDropSkillRequest:
		a.PendingSkill = -1
	case EffectCleanupTrade:
		cleanupTrade(m.w, a)
	case EffectResolveCraft:
		resolveCraft(m.w, a)
	case EffectAbortCraft:
		abortCraft(a)
	case EffectWarpToSpawn:
		spawn, err := m.w.Terrain.NearestSpawn(a.Position())
		if err != nil {
			m.w.Log.Error("no spawn point for respawn", zap.String("avatar", a.name), zap.Error(err))
			return
		}
		a.sync.Warp(spawn)
	case EffectRevive:
		a.Health = int(float64(a.HealthMax()) * m.w.Rules.RespawnHealthFraction)
		if a.Health < 1 {
			a.Health = 1
		}
		m.w.record(EventTypeRespawn, a.name, RespawnPayload{Entity: uint32(a.id), X: a.Position().X, Y: a.Position().Y})
	case EffectReportMovedWhileDead:
		m.w.Log.Warn("avatar moved while dead", zap.String("avatar", a.name))
	case EffectReportOutOfRange:
		a.notify("out_of_range", t.Destination)
	}
}

// onDeath applies the death consequences once, on entering DEAD.
func (m *Machine) onDeath(a *Avatar) {
	m.cast.CancelCast(a)
	a.ResetMovement()
	a.Target = 0

	kept := a.Buffs[:0]
	for _, b := range a.Buffs {
		if b.def != nil && b.def.RemainAfterDeath {
			kept = append(kept, b)
		}
	}
	a.Buffs = kept
	a.clampVitals()

	loss := int64(float64(a.ExperienceMax()) * m.w.Rules.DeathExperienceLoss)
	a.Experience -= loss
	if a.Experience < 0 {
		a.Experience = 0
	}
	m.w.record(EventTypeDeath, a.name, DeathPayload{Entity: uint32(a.id), ExperienceLost: loss})
	m.w.Log.Info("avatar died", zap.String("avatar", a.name), zap.Int64("experienceLost", loss))
}
