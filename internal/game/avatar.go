package game

import (
	"math"
	"time"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// Skill is an avatar's instance of a skill definition. Level 0 means not
// learned yet.
type Skill struct {
	Hash        uint64
	Level       int
	CastEnd     time.Duration
	CooldownEnd time.Duration

	def *content.SkillDefinition
}

func (s *Skill) Def() *content.SkillDefinition { return s.def }

// CastRemaining is the time left until the current cast completes.
func (s *Skill) CastRemaining(c clock.Clock) time.Duration {
	return clock.Remaining(c, s.CastEnd)
}

// CooldownRemaining is the time left until the skill can be used again.
func (s *Skill) CooldownRemaining(c clock.Clock) time.Duration {
	return clock.Remaining(c, s.CooldownEnd)
}

// Ready reports whether neither a cast nor a cooldown is running.
func (s *Skill) Ready(c clock.Clock) bool {
	return clock.Elapsed(c, s.CastEnd) && clock.Elapsed(c, s.CooldownEnd)
}

// Buff is an active timed effect from a buff skill.
type Buff struct {
	Hash  uint64
	Level int
	End   time.Duration

	def *content.SkillDefinition
}

func (b *Buff) Def() *content.SkillDefinition { return b.def }

// Remaining is the buff time left.
func (b *Buff) Remaining(c clock.Clock) time.Duration { return clock.Remaining(c, b.End) }

// ItemStack is an inventory or equipment slot. Amount 0 is an empty slot.
type ItemStack struct {
	Hash   uint64 `json:"hash"`
	Amount int    `json:"amount"`
}

// Empty reports whether the slot holds nothing.
func (s ItemStack) Empty() bool { return s.Amount <= 0 }

// Notice is a message for the owning client only.
type Notice struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Avatar is one player character.
type Avatar struct {
	Body

	Mana            int
	Experience      int64
	SkillExperience int64
	Gold            int64

	// Each strength point adds 1% of base health, each intelligence point
	// 1% of base mana.
	Strength     int
	Intelligence int

	State        State
	Target       EntityID
	NextTarget   EntityID
	CurrentSkill int // index into Skills while casting, -1 otherwise
	PendingSkill int // validated request waiting for the state machine, -1 if none

	Skills        []Skill
	Buffs         []Buff
	Inventory     []ItemStack
	Equipment     []ItemStack
	Trash         ItemStack
	ItemCooldowns map[uint64]time.Duration

	RiskyActionEnd time.Duration

	Trade Trading
	Craft Crafting
	Flags Flags

	world    *World
	sync     *movement.Synchronizer
	syncSeen movement.SyncStats
	notices  []Notice
}

var _ Entity = (*Avatar)(nil)

// NewAvatar creates a fresh level 1 avatar from the catalog template at
// position.
func NewAvatar(w *World, id EntityID, name string, position movement.Vec2) *Avatar {
	tpl := w.Catalog.Template()
	a := newAvatarShell(w, id, name, position)
	a.Level = 1
	for i := range a.Skills {
		if a.Skills[i].def.LearnDefault {
			a.Skills[i].Level = 1
		}
	}
	for _, ia := range tpl.StartItems {
		a.InventoryAdd(content.StableHash(ia.Item), ia.Amount)
	}
	a.Gold = tpl.StartGold
	a.Health = a.HealthMax()
	a.Mana = a.ManaMax()
	a.agent.SetSpeed(a.Speed())
	return a
}

// newAvatarShell builds an avatar with empty containers and every template
// skill at level 0.
func newAvatarShell(w *World, id EntityID, name string, position movement.Vec2) *Avatar {
	tpl := w.Catalog.Template()
	agent := movement.NewAgent(w.Terrain, position, tpl.Speed)
	a := &Avatar{
		Body: Body{
			id:     id,
			kind:   KindAvatar,
			name:   name,
			radius: tpl.Radius,
			agent:  agent,
			Level:  1,
		},
		CurrentSkill:  -1,
		PendingSkill:  -1,
		Inventory:     make([]ItemStack, tpl.InventorySize),
		Equipment:     make([]ItemStack, len(tpl.Equipment)),
		ItemCooldowns: make(map[uint64]time.Duration),
		world:         w,
	}
	for _, name := range tpl.Skills {
		def, err := w.Catalog.SkillByName(name)
		if err != nil {
			continue
		}
		a.Skills = append(a.Skills, Skill{Hash: def.Hash, def: def})
	}
	a.Trade.reset(w.Rules.TradeSlots)
	a.sync = movement.NewSynchronizer(uint32(id), agent, a, w.Rules.TickInterval)
	return a
}

// Sync returns the movement synchronizer.
func (a *Avatar) Sync() *movement.Synchronizer { return a.sync }

// AcceptsClientMovement implements movement.Authority.
func (a *Avatar) AcceptsClientMovement() bool {
	return a.Alive() && (a.State == StateIdle || a.State == StateMoving)
}

// IsMoving reports whether the navigation agent is travelling.
func (a *Avatar) IsMoving() bool { return a.agent.IsMoving() }

// ResetMovement stops the avatar and tells the owner.
func (a *Avatar) ResetMovement() { a.sync.ResetMovement() }

func (a *Avatar) notify(kind string, data any) {
	a.notices = append(a.notices, Notice{Kind: kind, Data: data})
}

// TakeNotices returns and clears pending owner notices.
func (a *Avatar) TakeNotices() []Notice {
	n := a.notices
	a.notices = nil
	return n
}

// bonus sums a stat over equipment and active buffs.
func (a *Avatar) bonus(pick func(b *content.Bonuses, level int) int) int {
	total := 0
	for _, slot := range a.Equipment {
		if slot.Empty() {
			continue
		}
		if def, err := a.world.Catalog.Item(slot.Hash); err == nil {
			total += pick(&def.Bonus, 1)
		}
	}
	for i := range a.Buffs {
		if def := a.Buffs[i].def; def != nil {
			total += pick(&def.Bonus, a.Buffs[i].Level)
		}
	}
	return total
}

// HealthMax includes level, strength, equipment and buffs.
func (a *Avatar) HealthMax() int {
	base := a.world.Catalog.Template().Health.Get(a.Level)
	return base + attributeBonus(base, a.Strength) +
		a.bonus(func(b *content.Bonuses, l int) int { return b.HealthMax.Get(l) })
}

// ManaMax includes level, intelligence, equipment and buffs.
func (a *Avatar) ManaMax() int {
	base := a.world.Catalog.Template().Mana.Get(a.Level)
	return base + attributeBonus(base, a.Intelligence) +
		a.bonus(func(b *content.Bonuses, l int) int { return b.ManaMax.Get(l) })
}

func attributeBonus(base, points int) int {
	return int(math.Round(float64(base) * float64(points) * 0.01))
}

// AttributesSpendable is how many attribute points the avatar has left.
func (a *Avatar) AttributesSpendable() int {
	return a.Level*a.world.Catalog.Template().AttributesPerLevel - (a.Strength + a.Intelligence)
}

// Damage is the base damage added to offensive skills.
func (a *Avatar) Damage() int {
	return a.world.Catalog.Template().Damage.Get(a.Level) +
		a.bonus(func(b *content.Bonuses, l int) int { return b.Damage.Get(l) })
}

// Defense reduces incoming damage.
func (a *Avatar) Defense() int {
	return a.world.Catalog.Template().Defense.Get(a.Level) +
		a.bonus(func(b *content.Bonuses, l int) int { return b.Defense.Get(l) })
}

// Speed is movement speed in units per second.
func (a *Avatar) Speed() float64 {
	s := a.world.Catalog.Template().Speed
	for i := range a.Buffs {
		if def := a.Buffs[i].def; def != nil {
			s += def.Bonus.Speed.Get(a.Buffs[i].Level)
		}
	}
	return s
}

// clampVitals keeps health and mana within their maxima after a stat change.
func (a *Avatar) clampVitals() {
	if hm := a.HealthMax(); a.Health > hm {
		a.Health = hm
	}
	if mm := a.ManaMax(); a.Mana > mm {
		a.Mana = mm
	}
	a.agent.SetSpeed(a.Speed())
}

// expireBuffs drops buffs whose time is up.
func (a *Avatar) expireBuffs(c clock.Clock) {
	n := 0
	for _, b := range a.Buffs {
		if !clock.Elapsed(c, b.End) {
			a.Buffs[n] = b
			n++
		}
	}
	if n != len(a.Buffs) {
		a.Buffs = a.Buffs[:n]
		a.clampVitals()
	}
}

// addBuff adds or refreshes a buff.
func (a *Avatar) addBuff(def *content.SkillDefinition, level int, c clock.Clock) {
	end := c.Now() + def.BuffTime.Duration(level)
	for i := range a.Buffs {
		if a.Buffs[i].Hash == def.Hash {
			a.Buffs[i].Level = level
			a.Buffs[i].End = end
			a.clampVitals()
			return
		}
	}
	a.Buffs = append(a.Buffs, Buff{Hash: def.Hash, Level: level, End: end, def: def})
	a.clampVitals()
}

// equippedCategory returns the category of the item in the named slot.
func (a *Avatar) equippedCategory(slotName string) string {
	for i, slot := range a.world.Catalog.Template().Equipment {
		if slot.Name != slotName || i >= len(a.Equipment) || a.Equipment[i].Empty() {
			continue
		}
		if def, err := a.world.Catalog.Item(a.Equipment[i].Hash); err == nil {
			return def.Category
		}
	}
	return ""
}
