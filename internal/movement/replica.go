package movement

// Replica is the client-side view of one entity. Observers follow the server
// destination or velocity; the owner moves locally and only snaps back when
// it drifts too far.
type Replica struct {
	owned bool
	agent *Agent
	warps int
}

// NewReplica creates a replica at the spawn position.
func NewReplica(owned bool, surface Surface, position Vec2, speed float64) *Replica {
	return &Replica{owned: owned, agent: NewAgent(surface, position, speed)}
}

func (r *Replica) Owned() bool { return r.owned }
func (r *Replica) Position() Vec2 { return r.agent.Position() }
func (r *Replica) Agent() *Agent { return r.agent }
func (r *Replica) Warps() int { return r.warps }

// Step advances local simulation by dt seconds.
func (r *Replica) Step(dt float64) { r.agent.Step(dt) }

// MoveTo is local input on the owning client.
func (r *Replica) MoveTo(dest Vec2) {
	r.agent.SetDestination(dest, 0)
}

// Report returns the position report the owner sends to the server.
func (r *Replica) Report(entity uint32) Message {
	return Message{Kind: KindPosition, Entity: entity, Position: r.agent.Position()}
}

// Apply consumes one server message.
func (r *Replica) Apply(m Message) {
	switch m.Kind {
	case KindDelta:
		d := m.Delta
		r.agent.SetSpeed(d.Speed)
		if r.agent.Position().Dist(d.Position) > d.Speed*2 {
			r.warp(d.Position)
		}
		if r.owned {
			return
		}
		if d.HasPath {
			r.agent.SetDestination(d.Destination, d.StoppingDistance)
		} else {
			r.agent.SetVelocity(d.Velocity)
		}
	case KindWarp:
		r.warp(m.Position)
	case KindReset:
		r.agent.ResetMovement()
		r.warp(m.Position)
	case KindCorrection:
		// Small drift is left to slide out.
		if r.agent.Position().Dist(m.Position) > r.agent.Speed()*2 {
			r.agent.ResetMovement()
			r.warp(m.Position)
		}
	}
}

func (r *Replica) warp(p Vec2) {
	r.agent.Warp(p)
	r.warps++
}
