// Package movement implements server-authoritative movement: a navigation
// agent per entity, the reconciliation of client reported positions against
// it, and the messages that keep owners and observers in step.
package movement

import "time"

// ReconcileState is the outcome of the last client position report.
type ReconcileState uint8

const (
	Unverified ReconcileState = iota
	Accepted
	Corrected
)

func (s ReconcileState) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case Accepted:
		return "accepted"
	case Corrected:
		return "corrected"
	default:
		return "unknown"
	}
}

// Kind identifies a movement message.
type Kind uint8

const (
	KindDelta      Kind = 0x01 // periodic state to observers
	KindWarp       Kind = 0x02 // out-of-band teleport to observers
	KindReset      Kind = 0x03 // forced stop to the owner
	KindCorrection Kind = 0x04 // rejected report to the owner
	KindPosition   Kind = 0x05 // client position report
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindWarp:
		return "warp"
	case KindReset:
		return "reset"
	case KindCorrection:
		return "correction"
	case KindPosition:
		return "position"
	default:
		return "unknown"
	}
}

// Audience selects who receives a message.
type Audience uint8

const (
	// ToObservers reaches every client observing the entity, owner included.
	ToObservers Audience = iota
	// ToOwner reaches only the controlling client.
	ToOwner
)

// StateDelta is the periodic movement state. Destination and stopping
// distance are meaningful only with HasPath, Velocity only without it.
type StateDelta struct {
	Position         Vec2
	Speed            float64
	HasPath          bool
	Destination      Vec2
	StoppingDistance float64
	Velocity         Vec2
}

// Message is one outgoing movement update.
type Message struct {
	Kind     Kind
	Audience Audience
	Entity   uint32
	Delta    StateDelta
	Position Vec2
}

// Authority decides whether client movement may be accepted right now.
// Avatars accept it only while alive and idle or moving.
type Authority interface {
	AcceptsClientMovement() bool
}

// teleportEpsilon absorbs float error in the per-tick travel bound.
const teleportEpsilon = 0.01

// SyncStats counts corrections for metrics.
type SyncStats struct {
	Teleports   uint64
	Resets      uint64
	Corrections uint64
}

// Synchronizer reconciles one entity's agent with its owning client and
// queues the messages its observers need. It is driven only by the tick
// goroutine.
type Synchronizer struct {
	entity       uint32
	agent        *Agent
	authority    Authority
	tickInterval float64

	state ReconcileState
	dirty bool

	lastPosition    Vec2
	lastDestination Vec2
	lastVelocity    Vec2
	lastHasPath     bool

	pending []Message
	stats   SyncStats
}

// NewSynchronizer binds a synchronizer to an agent. tickInterval is the
// fixed simulation step the agent is advanced by.
func NewSynchronizer(entity uint32, agent *Agent, authority Authority, tickInterval time.Duration) *Synchronizer {
	return &Synchronizer{
		entity:       entity,
		agent:        agent,
		authority:    authority,
		tickInterval: tickInterval.Seconds(),
		dirty:        true,
		lastPosition: agent.Position(),
	}
}

func (s *Synchronizer) Agent() *Agent { return s.agent }
func (s *Synchronizer) State() ReconcileState { return s.state }
func (s *Synchronizer) Dirty() bool { return s.dirty }
func (s *Synchronizer) Stats() SyncStats { return s.stats }

// HandleClientPosition processes a position report from the owning client.
// A report is accepted as the new destination only while the authority
// allows movement and the report is within one second of travel from the
// server position. Otherwise the owner is sent the server position, which
// it snaps to only when it has drifted more than two seconds of travel.
func (s *Synchronizer) HandleClientPosition(p Vec2) ReconcileState {
	s.dirty = true
	server := s.agent.Position()
	if !s.authority.AcceptsClientMovement() || p.Dist(server) > s.agent.Speed() {
		s.state = Corrected
		s.stats.Corrections++
		s.pending = append(s.pending, Message{
			Kind:     KindCorrection,
			Audience: ToOwner,
			Entity:   s.entity,
			Position: server,
		})
		return s.state
	}
	s.agent.SetDestination(p, 0)
	s.state = Accepted
	return s.state
}

// ServerUpdate runs once per tick after the agent has been stepped. A jump
// larger than one tick of travel is a teleport and is sent to observers
// right away.
func (s *Synchronizer) ServerUpdate() {
	a := s.agent
	pos := a.Position()
	if pos.Dist(s.lastPosition) > a.Speed()*s.tickInterval+teleportEpsilon {
		s.stats.Teleports++
		s.pending = append(s.pending, Message{
			Kind:     KindWarp,
			Audience: ToObservers,
			Entity:   s.entity,
			Position: pos,
		})
		s.dirty = true
	}
	if a.HasPath() != s.lastHasPath || a.Destination() != s.lastDestination || a.Velocity() != s.lastVelocity {
		s.dirty = true
	}
	if a.IsMoving() {
		s.dirty = true
	}
	s.lastPosition = pos
	s.lastDestination = a.Destination()
	s.lastVelocity = a.Velocity()
	s.lastHasPath = a.HasPath()
}

// ResetMovement stops the agent and forces the owner to snap to the server
// position.
func (s *Synchronizer) ResetMovement() {
	s.agent.ResetMovement()
	s.stats.Resets++
	s.pending = append(s.pending, Message{
		Kind:     KindReset,
		Audience: ToOwner,
		Entity:   s.entity,
		Position: s.agent.Position(),
	})
	s.dirty = true
}

// Warp teleports the agent and tells every observer immediately.
func (s *Synchronizer) Warp(p Vec2) {
	s.agent.Warp(p)
	s.lastPosition = p
	s.pending = append(s.pending, Message{
		Kind:     KindWarp,
		Audience: ToObservers,
		Entity:   s.entity,
		Position: p,
	})
	s.dirty = true
}

// Serialize returns the current movement state with only the payload of the
// active movement mode set.
func (s *Synchronizer) Serialize() StateDelta {
	a := s.agent
	d := StateDelta{Position: a.Position(), Speed: a.Speed()}
	if a.HasPath() {
		d.HasPath = true
		d.Destination = a.Destination()
		d.StoppingDistance = a.StoppingDistance()
	} else {
		d.Velocity = a.Velocity()
	}
	return d
}

// Flush appends queued out-of-band messages to dst. With periodic set it
// also appends a state delta when the entity is dirty and clears the flag.
func (s *Synchronizer) Flush(dst []Message, periodic bool) []Message {
	dst = append(dst, s.pending...)
	s.pending = s.pending[:0]
	if periodic && s.dirty {
		dst = append(dst, Message{
			Kind:     KindDelta,
			Audience: ToObservers,
			Entity:   s.entity,
			Delta:    s.Serialize(),
		})
		s.dirty = false
	}
	return dst
}
