package game

import (
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/movement"
)

// AvatarSnapshot is the persisted form of an avatar. Timers are stored as
// remaining durations and rebased on the clock of the restoring process.
type AvatarSnapshot struct {
	Name            string        `json:"name"`
	Level           int           `json:"level"`
	Health          int           `json:"health"`
	Mana            int           `json:"mana"`
	Experience      int64         `json:"experience"`
	SkillExperience int64         `json:"skillExperience"`
	Gold            int64         `json:"gold"`
	Strength        int           `json:"strength,omitempty"`
	Intelligence    int           `json:"intelligence,omitempty"`
	Position        movement.Vec2 `json:"position"`

	Skills        []SkillSnapshot    `json:"skills"`
	Buffs         []BuffSnapshot     `json:"buffs,omitempty"`
	Inventory     []ItemStack        `json:"inventory"`
	Equipment     []ItemStack        `json:"equipment"`
	Trash         ItemStack          `json:"trash"`
	ItemCooldowns []CooldownSnapshot `json:"itemCooldowns,omitempty"`

	StunRemaining  time.Duration `json:"stunRemaining,omitempty"`
	RiskyRemaining time.Duration `json:"riskyRemaining,omitempty"`
}

type SkillSnapshot struct {
	Hash              uint64        `json:"hash"`
	Level             int           `json:"level"`
	CastRemaining     time.Duration `json:"castRemaining,omitempty"`
	CooldownRemaining time.Duration `json:"cooldownRemaining,omitempty"`
}

type BuffSnapshot struct {
	Hash      uint64        `json:"hash"`
	Level     int           `json:"level"`
	Remaining time.Duration `json:"remaining"`
}

type CooldownSnapshot struct {
	Key       uint64        `json:"key"`
	Remaining time.Duration `json:"remaining"`
}

// Snapshot captures a for persistence.
func Snapshot(w *World, a *Avatar) AvatarSnapshot {
	c := w.Clock
	s := AvatarSnapshot{
		Name:            a.name,
		Level:           a.Level,
		Health:          a.Health,
		Mana:            a.Mana,
		Experience:      a.Experience,
		SkillExperience: a.SkillExperience,
		Gold:            a.Gold,
		Strength:        a.Strength,
		Intelligence:    a.Intelligence,
		Position:        a.Position(),
		Inventory:       append([]ItemStack(nil), a.Inventory...),
		Equipment:       append([]ItemStack(nil), a.Equipment...),
		Trash:           a.Trash,
		StunRemaining:   clock.Remaining(c, a.StunEnd),
		RiskyRemaining:  clock.Remaining(c, a.RiskyActionEnd),
	}
	for i := range a.Skills {
		sk := &a.Skills[i]
		s.Skills = append(s.Skills, SkillSnapshot{
			Hash:              sk.Hash,
			Level:             sk.Level,
			CastRemaining:     sk.CastRemaining(c),
			CooldownRemaining: sk.CooldownRemaining(c),
		})
	}
	for i := range a.Buffs {
		s.Buffs = append(s.Buffs, BuffSnapshot{
			Hash:      a.Buffs[i].Hash,
			Level:     a.Buffs[i].Level,
			Remaining: a.Buffs[i].Remaining(c),
		})
	}
	for key, end := range a.ItemCooldowns {
		if rem := clock.Remaining(c, end); rem > 0 {
			s.ItemCooldowns = append(s.ItemCooldowns, CooldownSnapshot{Key: key, Remaining: rem})
		}
	}
	return s
}

// RestoreAvatar rebuilds an avatar from a snapshot. Content that no longer
// exists in the catalog is logged and skipped. An avatar saved dead comes
// back in DEAD without paying the death penalty again.
func RestoreAvatar(w *World, id EntityID, s AvatarSnapshot) *Avatar {
	now := w.Now()
	pos := s.Position
	if !w.Terrain.Walkable(pos) {
		if spawn, err := w.Terrain.NearestSpawn(pos); err == nil {
			pos = spawn
		}
	}
	a := newAvatarShell(w, id, s.Name, pos)
	a.Level = max(s.Level, 1)
	a.Experience = s.Experience
	a.SkillExperience = s.SkillExperience
	a.Gold = s.Gold
	a.Strength = max(s.Strength, 0)
	a.Intelligence = max(s.Intelligence, 0)
	a.StunEnd = now + s.StunRemaining
	a.RiskyActionEnd = now + s.RiskyRemaining

	for _, ss := range s.Skills {
		sk := a.skillByHash(ss.Hash)
		if sk == nil {
			w.Log.Warn("unknown skill in snapshot", zap.String("avatar", s.Name), zap.Uint64("hash", ss.Hash))
			continue
		}
		sk.Level = min(ss.Level, sk.def.MaxLevel)
		sk.CastEnd = now + ss.CastRemaining
		sk.CooldownEnd = now + ss.CooldownRemaining
	}
	for _, bs := range s.Buffs {
		def, err := w.Catalog.Skill(bs.Hash)
		if err != nil {
			w.Log.Warn("unknown buff in snapshot", zap.String("avatar", s.Name), zap.Error(err))
			continue
		}
		a.Buffs = append(a.Buffs, Buff{Hash: bs.Hash, Level: bs.Level, End: now + bs.Remaining, def: def})
	}
	restoreSlots(w, s.Name, a.Inventory, s.Inventory)
	restoreSlots(w, s.Name, a.Equipment, s.Equipment)
	if !s.Trash.Empty() {
		if _, err := w.Catalog.Item(s.Trash.Hash); err == nil {
			a.Trash = s.Trash
		}
	}
	for _, cd := range s.ItemCooldowns {
		a.ItemCooldowns[cd.Key] = now + cd.Remaining
	}

	a.Health = min(s.Health, a.HealthMax())
	a.Mana = min(s.Mana, a.ManaMax())
	a.agent.SetSpeed(a.Speed())
	if a.Health <= 0 {
		a.Health = 0
		a.State = StateDead
	}
	return a
}

func restoreSlots(w *World, name string, dst, src []ItemStack) {
	for i, st := range src {
		if i >= len(dst) {
			w.Log.Warn("snapshot has more slots than the template", zap.String("avatar", name), zap.Int("slots", len(src)))
			return
		}
		if st.Empty() {
			continue
		}
		if _, err := w.Catalog.Item(st.Hash); err != nil {
			w.Log.Warn("unknown item in snapshot", zap.String("avatar", name), zap.Error(err))
			continue
		}
		dst[i] = st
	}
}

func (a *Avatar) skillByHash(hash uint64) *Skill {
	for i := range a.Skills {
		if a.Skills[i].Hash == hash {
			return &a.Skills[i]
		}
	}
	return nil
}
