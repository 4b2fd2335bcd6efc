package game

import (
	"go.uber.org/zap"
)

// Reason explains why a command was not executed. The set is small and
// fixed so it can label metrics.
type Reason string

const (
	ReasonOK        Reason = ""
	ReasonState     Reason = "state"
	ReasonRange     Reason = "range"
	ReasonIndex     Reason = "index"
	ReasonResources Reason = "resources"
	ReasonCooldown  Reason = "cooldown"
	ReasonTarget    Reason = "target"
	ReasonContent   Reason = "content"
	ReasonCorrected Reason = "corrected"
)

// Command is a client request. Commands only record intent or perform
// state-independent work; transitions stay with the state machine.
type Command interface {
	Name() string
	allowed() stateSet
	execute(w *World, a *Avatar) Reason
}

// Gate validates commands against the avatar's current state. Rejections
// are silent toward the client; they are counted and logged at debug.
type Gate struct {
	w       *World
	metrics Metrics
}

// NewGate creates a command gate for w.
func NewGate(w *World, metrics Metrics) *Gate {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Gate{w: w, metrics: metrics}
}

// Execute runs cmd for a if its state allows it.
func (g *Gate) Execute(a *Avatar, cmd Command) Reason {
	r := ReasonState
	if cmd.allowed().has(a.State) {
		r = cmd.execute(g.w, a)
	}
	g.metrics.Command(cmd.Name(), r)
	if r != ReasonOK {
		g.w.Log.Debug("command rejected",
			zap.String("avatar", a.name),
			zap.String("command", cmd.Name()),
			zap.Stringer("state", a.State),
			zap.String("reason", string(r)))
	}
	return r
}

var (
	activeStates  = states(StateIdle, StateMoving, StateCasting)
	freeStates    = states(StateIdle, StateMoving)
	idleStates    = states(StateIdle)
	tradingStates = states(StateTrading)
)
