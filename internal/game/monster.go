package game

import (
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// Monster is a hostile entity without behavior of its own. It exists to be
// targeted, killed and looted, and respawns at its spawn point.
type Monster struct {
	Body

	def   *content.MonsterDefinition
	spawn movement.Vec2

	RespawnAt time.Duration
	LootGold  int64
	LootItems []ItemStack
}

var _ Entity = (*Monster)(nil)

// NewMonster spawns a monster of def at position.
func NewMonster(id EntityID, def *content.MonsterDefinition, position movement.Vec2) *Monster {
	return &Monster{
		Body: Body{
			id:     id,
			kind:   KindMonster,
			name:   def.Name,
			radius: def.Radius,
			agent:  movement.NewAgent(nil, position, 0),
			Level:  def.Level,
			Health: def.Health,
		},
		def:   def,
		spawn: position,
	}
}

func (m *Monster) Def() *content.MonsterDefinition { return m.def }
func (m *Monster) HealthMax() int { return m.def.Health }
func (m *Monster) Defense() int { return m.def.Defense }

// die rolls loot and schedules the respawn.
func (m *Monster) die(w *World) {
	m.LootGold = 0
	if span := m.def.GoldMax - m.def.GoldMin; span > 0 {
		m.LootGold = m.def.GoldMin + w.Rand.Int63n(span+1)
	} else {
		m.LootGold = m.def.GoldMin
	}
	m.LootItems = m.LootItems[:0]
	for _, d := range m.def.Drops {
		if w.Rand.Float64() < d.Probability {
			m.LootItems = append(m.LootItems, ItemStack{Hash: content.StableHash(d.Item), Amount: 1})
		}
	}
	m.RespawnAt = w.Now() + content.Seconds(m.def.RespawnTime)
	w.Log.Debug("monster died",
		zap.String("monster", m.name),
		zap.Uint32("id", uint32(m.id)),
		zap.Int64("gold", m.LootGold),
		zap.Int("items", len(m.LootItems)))
}

// update respawns a dead monster once its delay has passed.
func (m *Monster) update(w *World) {
	if m.Alive() || !clock.Elapsed(w.Clock, m.RespawnAt) {
		return
	}
	m.Health = m.def.Health
	m.StunEnd = 0
	m.LootGold = 0
	m.LootItems = m.LootItems[:0]
	m.agent.Warp(m.spawn)
	w.record(EventTypeRespawn, m.name, RespawnPayload{Entity: uint32(m.id), X: m.spawn.X, Y: m.spawn.Y})
}
