package movement

// Surface is the navigable area an agent moves on.
type Surface interface {
	// Nearest returns the reachable position closest to `to`.
	Nearest(from, to Vec2) (Vec2, bool)
	// Path returns waypoints ending at `to`.
	Path(from, to Vec2) ([]Vec2, bool)
	Walkable(p Vec2) bool
}

// Agent is the server-side navigation body of an entity. It moves either
// along a path toward a destination or freely along a velocity, never both.
type Agent struct {
	surface Surface

	position Vec2
	speed    float64

	hasPath          bool
	destination      Vec2
	stoppingDistance float64
	path             []Vec2

	velocity Vec2
	look     Vec2
}

// NewAgent places an agent at position.
func NewAgent(surface Surface, position Vec2, speed float64) *Agent {
	return &Agent{
		surface:  surface,
		position: position,
		speed:    speed,
		look:     Vec2{X: 0, Y: 1},
	}
}

func (a *Agent) Position() Vec2 { return a.position }
func (a *Agent) Speed() float64 { return a.speed }
func (a *Agent) SetSpeed(s float64) { a.speed = s }
func (a *Agent) HasPath() bool { return a.hasPath }
func (a *Agent) Destination() Vec2 { return a.destination }
func (a *Agent) StoppingDistance() float64 { return a.stoppingDistance }

// Velocity returns the direct-movement velocity.
func (a *Agent) Velocity() Vec2 { return a.velocity }

// LookDirection is the unit direction the agent last moved or faced.
func (a *Agent) LookDirection() Vec2 { return a.look }

// LookAt faces a position without moving.
func (a *Agent) LookAt(p Vec2) {
	if d := p.Sub(a.position).Normalize(); !d.IsZero() {
		a.look = d
	}
}

// IsMoving reports whether the agent has somewhere to go.
func (a *Agent) IsMoving() bool {
	return a.hasPath || !a.velocity.IsZero()
}

// SetDestination starts path movement. An unreachable destination is
// replaced by the nearest reachable point. It returns the destination
// actually used.
func (a *Agent) SetDestination(dest Vec2, stoppingDistance float64) Vec2 {
	if a.surface != nil {
		if near, ok := a.surface.Nearest(a.position, dest); ok {
			dest = near
		}
	}
	a.velocity = Vec2{}
	a.destination = dest
	a.stoppingDistance = stoppingDistance
	a.path = a.path[:0]
	if a.position.Dist(dest) <= stoppingDistance {
		a.hasPath = false
		return dest
	}
	if a.surface != nil {
		if wp, ok := a.surface.Path(a.position, dest); ok {
			a.path = append(a.path, wp...)
		}
	}
	if len(a.path) == 0 {
		a.path = append(a.path, dest)
	}
	a.hasPath = true
	return dest
}

// SetVelocity starts direct movement and drops any path.
func (a *Agent) SetVelocity(v Vec2) {
	a.hasPath = false
	a.path = a.path[:0]
	a.velocity = v
}

// Warp moves the agent instantly and stops it.
func (a *Agent) Warp(p Vec2) {
	a.position = p
	a.ResetMovement()
}

// ResetMovement stops the agent where it stands.
func (a *Agent) ResetMovement() {
	a.hasPath = false
	a.path = a.path[:0]
	a.velocity = Vec2{}
	a.destination = a.position
}

// Step advances the agent by dt seconds.
func (a *Agent) Step(dt float64) {
	switch {
	case a.hasPath:
		budget := a.speed * dt
		for budget > 0 && len(a.path) > 0 {
			if a.position.Dist(a.destination) <= a.stoppingDistance {
				break
			}
			next := a.path[0]
			d := a.position.Dist(next)
			if dir := next.Sub(a.position).Normalize(); !dir.IsZero() {
				a.look = dir
			}
			if d <= budget {
				a.position = next
				a.path = a.path[1:]
				budget -= d
				continue
			}
			a.position = a.position.MoveTowards(next, budget)
			budget = 0
		}
		if len(a.path) == 0 || a.position.Dist(a.destination) <= a.stoppingDistance {
			a.hasPath = false
			a.path = a.path[:0]
		}
	case !a.velocity.IsZero():
		next := a.position.Add(a.velocity.Scale(dt))
		if a.surface != nil && !a.surface.Walkable(next) {
			a.velocity = Vec2{}
			return
		}
		a.look = a.velocity.Normalize()
		a.position = next
	}
}
