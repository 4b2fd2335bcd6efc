package game

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"mmo-avatar/internal/movement"
)

// EntityID identifies an entity for the lifetime of the process. Zero means
// none.
type EntityID uint32

// EntityKind distinguishes avatars, monsters and npcs.
type EntityKind uint8

const (
	KindAvatar EntityKind = iota + 1
	KindMonster
	KindNpc
)

func (k EntityKind) String() string {
	switch k {
	case KindAvatar:
		return "avatar"
	case KindMonster:
		return "monster"
	case KindNpc:
		return "npc"
	default:
		return "unknown"
	}
}

// Body is the state every entity shares.
type Body struct {
	id     EntityID
	kind   EntityKind
	name   string
	radius float64
	agent  *movement.Agent

	Level   int
	Health  int
	StunEnd time.Duration
}

func (b *Body) Base() *Body { return b }
func (b *Body) ID() EntityID { return b.id }
func (b *Body) Kind() EntityKind { return b.kind }
func (b *Body) Name() string { return b.name }
func (b *Body) Radius() float64 { return b.radius }
func (b *Body) Agent() *movement.Agent { return b.agent }
func (b *Body) Position() movement.Vec2 { return b.agent.Position() }
func (b *Body) Alive() bool { return b.Health > 0 }

// Entity is anything that can be targeted.
type Entity interface {
	Base() *Body
	HealthMax() int
	Defense() int
}

// ClosestDistance is the gap between two entity circles, zero when they
// touch or overlap.
func ClosestDistance(a, b Entity) float64 {
	ab, bb := a.Base(), b.Base()
	d := ab.Position().Dist(bb.Position()) - ab.radius - bb.radius
	return math.Max(d, 0)
}

// ClosestPoint returns the point of e's circle nearest to p.
func ClosestPoint(e Entity, p movement.Vec2) movement.Vec2 {
	b := e.Base()
	return movement.ClosestPointOnCircle(b.Position(), b.radius, p)
}

// ErrNameTaken is returned when an avatar with the same name is online.
var ErrNameTaken = errors.New("game: avatar name already online")

// Registry is the set of entities in the zone. It is owned by the tick
// goroutine, which is the only writer and reader; other goroutines see the
// published WorldView instead.
type Registry struct {
	nextID   EntityID
	entities map[EntityID]Entity
	avatars  map[string]*Avatar

	avatarList  []*Avatar
	monsterList []*Monster
	npcList     []*Npc
	dirtyOrder  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[EntityID]Entity),
		avatars:  make(map[string]*Avatar),
	}
}

// NextID reserves a fresh entity id.
func (r *Registry) NextID() EntityID {
	r.nextID++
	return r.nextID
}

// AddAvatar registers an avatar. Names are unique among online avatars.
func (r *Registry) AddAvatar(a *Avatar) error {
	if _, ok := r.avatars[a.name]; ok {
		return fmt.Errorf("%w: %s", ErrNameTaken, a.name)
	}
	r.entities[a.id] = a
	r.avatars[a.name] = a
	r.dirtyOrder = true
	return nil
}

// AddMonster registers a monster.
func (r *Registry) AddMonster(m *Monster) {
	r.entities[m.id] = m
	r.dirtyOrder = true
}

// AddNpc registers an npc.
func (r *Registry) AddNpc(n *Npc) {
	r.entities[n.id] = n
	r.dirtyOrder = true
}

// Remove drops an entity. Outstanding references to it resolve to nothing
// from now on.
func (r *Registry) Remove(id EntityID) {
	e, ok := r.entities[id]
	if !ok {
		return
	}
	delete(r.entities, id)
	if a, ok := e.(*Avatar); ok {
		delete(r.avatars, a.name)
	}
	r.dirtyOrder = true
}

// Resolve looks up an entity by id. It never returns a removed entity.
func (r *Registry) Resolve(id EntityID) (Entity, bool) {
	if id == 0 {
		return nil, false
	}
	e, ok := r.entities[id]
	return e, ok
}

// Avatar looks up an avatar by id.
func (r *Registry) Avatar(id EntityID) (*Avatar, bool) {
	e, ok := r.Resolve(id)
	if !ok {
		return nil, false
	}
	a, ok := e.(*Avatar)
	return a, ok
}

// AvatarByName looks up an online avatar.
func (r *Registry) AvatarByName(name string) (*Avatar, bool) {
	if name == "" {
		return nil, false
	}
	a, ok := r.avatars[name]
	return a, ok
}

// Avatars returns online avatars ordered by id. The slice is shared and
// must not be modified.
func (r *Registry) Avatars() []*Avatar {
	r.reorder()
	return r.avatarList
}

// Monsters returns monsters ordered by id.
func (r *Registry) Monsters() []*Monster {
	r.reorder()
	return r.monsterList
}

// Npcs returns npcs ordered by id.
func (r *Registry) Npcs() []*Npc {
	r.reorder()
	return r.npcList
}

// Len returns the number of online avatars.
func (r *Registry) Len() int { return len(r.avatars) }

func (r *Registry) reorder() {
	if !r.dirtyOrder {
		return
	}
	// fresh slices so callers iterating the old order are unaffected
	r.avatarList = make([]*Avatar, 0, len(r.avatars))
	r.monsterList = make([]*Monster, 0, len(r.entities)-len(r.avatars))
	r.npcList = nil
	for _, e := range r.entities {
		switch v := e.(type) {
		case *Avatar:
			r.avatarList = append(r.avatarList, v)
		case *Monster:
			r.monsterList = append(r.monsterList, v)
		case *Npc:
			r.npcList = append(r.npcList, v)
		}
	}
	sort.Slice(r.avatarList, func(i, j int) bool { return r.avatarList[i].id < r.avatarList[j].id })
	sort.Slice(r.monsterList, func(i, j int) bool { return r.monsterList[i].id < r.monsterList[j].id })
	sort.Slice(r.npcList, func(i, j int) bool { return r.npcList[i].id < r.npcList[j].id })
	r.dirtyOrder = false
}
