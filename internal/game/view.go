package game

import (
	"time"

	"mmo-avatar/internal/game/spatial"
	"mmo-avatar/internal/movement"
)

// AvatarView is an immutable copy of an avatar for API readers.
type AvatarView struct {
	ID           uint32        `json:"id"`
	Name         string        `json:"name"`
	State        State         `json:"state"`
	Level        int           `json:"level"`
	Health       int           `json:"health"`
	HealthMax    int           `json:"healthMax"`
	Mana         int           `json:"mana"`
	ManaMax      int           `json:"manaMax"`
	Experience   int64         `json:"experience"`
	Gold         int64         `json:"gold"`
	Strength     int           `json:"strength"`
	Intelligence int           `json:"intelligence"`
	Position     movement.Vec2 `json:"position"`
	Target       uint32        `json:"target,omitempty"`
	Casting      string        `json:"casting,omitempty"`
	CastProgress float64       `json:"castProgress,omitempty"`
	Sync         string        `json:"sync"`
}

// MonsterView is an immutable copy of a monster.
type MonsterView struct {
	ID       uint32        `json:"id"`
	Name     string        `json:"name"`
	Level    int           `json:"level"`
	Health   int           `json:"health"`
	Alive    bool          `json:"alive"`
	Position movement.Vec2 `json:"position"`
}

// NpcView is an immutable copy of an npc.
type NpcView struct {
	ID       uint32        `json:"id"`
	Name     string        `json:"name"`
	Position movement.Vec2 `json:"position"`
	Sells    []string      `json:"sells,omitempty"`
	Teleport bool          `json:"teleport,omitempty"`
}

// WorldView is a complete immutable state of the zone. A new one is built
// and published at every sync interval; readers never share memory with the
// tick.
type WorldView struct {
	Sequence  uint64            `json:"sequence"`
	Timestamp time.Time         `json:"timestamp"`
	Tick      uint64            `json:"tick"`
	Avatars   []AvatarView      `json:"avatars"`
	Monsters  []MonsterView     `json:"monsters"`
	Npcs      []NpcView         `json:"npcs"`
	Grid      spatial.GridStats `json:"grid"`
	Inbox     InboxStats        `json:"inbox"`
}

// Avatar finds an avatar by name.
func (v *WorldView) Avatar(name string) (AvatarView, bool) {
	for _, a := range v.Avatars {
		if a.Name == name {
			return a, true
		}
	}
	return AvatarView{}, false
}

func viewAvatar(w *World, a *Avatar) AvatarView {
	v := AvatarView{
		ID:           uint32(a.id),
		Name:         a.name,
		State:        a.State,
		Level:        a.Level,
		Health:       a.Health,
		HealthMax:    a.HealthMax(),
		Mana:         a.Mana,
		ManaMax:      a.ManaMax(),
		Experience:   a.Experience,
		Gold:         a.Gold,
		Strength:     a.Strength,
		Intelligence: a.Intelligence,
		Position:     a.Position(),
		Target:       uint32(a.Target),
		Sync:         a.sync.State().String(),
	}
	if a.CurrentSkill >= 0 && a.CurrentSkill < len(a.Skills) {
		v.Casting = a.Skills[a.CurrentSkill].def.Name
		v.CastProgress = castProgress(w.Clock, a)
	}
	return v
}

func viewMonster(m *Monster) MonsterView {
	return MonsterView{
		ID:       uint32(m.id),
		Name:     m.name,
		Level:    m.Level,
		Health:   m.Health,
		Alive:    m.Alive(),
		Position: m.Position(),
	}
}

func viewNpc(n *Npc) NpcView {
	_, teleport := n.Teleport()
	return NpcView{
		ID:       uint32(n.id),
		Name:     n.name,
		Position: n.Position(),
		Sells:    n.def.SaleItems,
		Teleport: teleport,
	}
}
