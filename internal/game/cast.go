package game

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// CastCheck is the result of validating a skill cast.
type CastCheck uint8

const (
	CastOK CastCheck = iota
	CastSelfFailed
	CastTargetFailed
	CastOutOfRange
)

func (c CastCheck) String() string {
	switch c {
	case CastOK:
		return "ok"
	case CastSelfFailed:
		return "self"
	case CastTargetFailed:
		return "target"
	case CastOutOfRange:
		return "range"
	}
	return "unknown"
}

// Caster validates, starts, finishes and cancels skill casts.
type Caster struct {
	w *World
}

// NewCaster creates a Caster for w.
func NewCaster(w *World) *Caster { return &Caster{w: w} }

func (c *Caster) skill(a *Avatar, idx int) (*Skill, bool) {
	if idx < 0 || idx >= len(a.Skills) {
		return nil, false
	}
	s := &a.Skills[idx]
	return s, s.def != nil
}

// CheckSelf validates the caster: alive, learned, ready, enough mana,
// level and weapon requirements.
func (c *Caster) CheckSelf(a *Avatar, idx int) bool {
	s, ok := c.skill(a, idx)
	if !ok || !a.Alive() || s.Level <= 0 || !s.Ready(c.w.Clock) {
		return false
	}
	def := s.def
	if a.Level < def.RequiredLevel || a.Mana < def.ManaCost.Get(s.Level) {
		return false
	}
	if def.RequiredWeapon != "" && !strings.HasPrefix(a.equippedCategory("weapon"), def.RequiredWeapon) {
		return false
	}
	return true
}

// CheckTarget validates the current target for skills that need one. Self
// targeted skills always pass.
func (c *Caster) CheckTarget(a *Avatar, idx int) bool {
	s, ok := c.skill(a, idx)
	if !ok {
		return false
	}
	if s.def.TargetsSelf() {
		return true
	}
	target, ok := c.w.Registry.Resolve(a.Target)
	if !ok || target.Base().ID() == a.id || !target.Base().Alive() {
		return false
	}
	return c.attackable(a, target)
}

// CheckDistance reports whether the target is within cast range and, if
// not, the point to move to.
func (c *Caster) CheckDistance(a *Avatar, idx int) (movement.Vec2, bool) {
	s, ok := c.skill(a, idx)
	if !ok {
		return a.Position(), false
	}
	if s.def.TargetsSelf() {
		return a.Position(), true
	}
	target, ok := c.w.Registry.Resolve(a.Target)
	if !ok {
		return a.Position(), false
	}
	if ClosestDistance(a, target) <= s.def.CastRange.Get(s.Level) {
		return a.Position(), true
	}
	return ClosestPoint(target, a.Position()), false
}

// Check runs the self, target and distance checks in that order.
func (c *Caster) Check(a *Avatar, idx int) (movement.Vec2, CastCheck) {
	if !c.CheckSelf(a, idx) {
		return a.Position(), CastSelfFailed
	}
	if !c.CheckTarget(a, idx) {
		return a.Position(), CastTargetFailed
	}
	dest, ok := c.CheckDistance(a, idx)
	if !ok {
		return dest, CastOutOfRange
	}
	return dest, CastOK
}

// StartCast pays the mana and starts the cast timer for skill idx.
func (c *Caster) StartCast(a *Avatar, idx int) {
	s, ok := c.skill(a, idx)
	if !ok {
		return
	}
	a.Mana -= s.def.ManaCost.Get(s.Level)
	if a.Mana < 0 {
		a.Mana = 0
	}
	s.CastEnd = c.w.Now() + s.def.CastTime.Duration(s.Level)
	a.CurrentSkill = idx
	a.PendingSkill = -1
	if target, ok := c.w.Registry.Resolve(a.Target); ok && !s.def.TargetsSelf() {
		a.agent.LookAt(target.Base().Position())
	}
}

// CancelCast stops the current cast without applying it. Mana stays spent.
func (c *Caster) CancelCast(a *Avatar) {
	if s, ok := c.skill(a, a.CurrentSkill); ok {
		s.CastEnd = c.w.Now()
	}
	a.CurrentSkill = -1
	a.PendingSkill = -1
}

// FinishCast applies the current skill and starts its cooldown.
func (c *Caster) FinishCast(a *Avatar) {
	s, ok := c.skill(a, a.CurrentSkill)
	a.CurrentSkill = -1
	if !ok {
		return
	}
	switch s.def.Kind {
	case content.SkillTargetDamage:
		c.applyTargetDamage(a, s)
	case content.SkillSlashDamage:
		c.applySlashDamage(a, s)
	case content.SkillAreaHeal:
		c.applyAreaHeal(a, s)
	case content.SkillBuff:
		c.buffRecipient(a, s).addBuff(s.def, s.Level, c.w.Clock)
	}
	s.CooldownEnd = c.w.Now() + s.def.Cooldown.Duration(s.Level)
}

func (c *Caster) applyTargetDamage(a *Avatar, s *Skill) {
	target, ok := c.w.Registry.Resolve(a.Target)
	if !ok || !target.Base().Alive() {
		return
	}
	a.agent.LookAt(target.Base().Position())
	c.DealDamage(a, target, s.def.Damage.Get(s.Level)+a.Damage(),
		s.def.StunChance.Get(s.Level), s.def.StunTime.Duration(s.Level))
}

// applySlashDamage hits everything in a box in front of the caster, as long
// and as wide as the cast range.
func (c *Caster) applySlashDamage(a *Avatar, s *Skill) {
	reach := s.def.CastRange.Get(s.Level)
	look := a.agent.LookDirection()
	origin := a.Position()
	amount := s.def.Damage.Get(s.Level) + a.Damage()

	var hits []Entity
	for _, m := range c.w.Registry.Monsters() {
		hits = append(hits, m)
	}
	for _, o := range c.w.Registry.Avatars() {
		hits = append(hits, o)
	}
	for _, e := range hits {
		b := e.Base()
		if b.ID() == a.id || !b.Alive() || !c.attackable(a, e) {
			continue
		}
		rel := b.Position().Sub(origin)
		along := rel.Dot(look)
		side := rel.Sub(look.Scale(along)).Len()
		if along < -b.Radius() || along > reach+b.Radius() || side > reach/2+b.Radius() {
			continue
		}
		c.DealDamage(a, e, amount, s.def.StunChance.Get(s.Level), s.def.StunTime.Duration(s.Level))
	}
}

func (c *Caster) applyAreaHeal(a *Avatar, s *Skill) {
	reach := s.def.CastRange.Get(s.Level)
	health := s.def.HealHealth.Get(s.Level)
	mana := s.def.HealMana.Get(s.Level)
	for _, o := range c.w.Registry.Avatars() {
		if !o.Alive() || o.Position().Dist(a.Position()) > reach {
			continue
		}
		o.Health += health
		o.Mana += mana
		o.clampVitals()
	}
}

// buffRecipient is the selected target when it is a living party member
// within reach, otherwise the caster. Buffs without a cast range reach as
// far as the interaction range.
func (c *Caster) buffRecipient(a *Avatar, s *Skill) *Avatar {
	target, ok := c.w.Registry.Resolve(a.Target)
	if !ok {
		return a
	}
	o, ok := target.(*Avatar)
	if !ok || o.id == a.id || !o.Alive() || !sameParty(c.w.Parties, a.name, o.name) {
		return a
	}
	reach := s.def.CastRange.Get(s.Level)
	if reach <= 0 {
		reach = c.w.Rules.InteractionRange
	}
	if o.Position().Dist(a.Position()) > reach {
		return a
	}
	return o
}

// attackable reports whether a may damage e: monsters always, other avatars
// unless they share a party.
func (c *Caster) attackable(a *Avatar, e Entity) bool {
	switch v := e.(type) {
	case *Monster:
		return true
	case *Avatar:
		return v.id != a.id && !sameParty(c.w.Parties, a.name, v.name)
	}
	return false
}

// DealDamage applies amount minus the victim's defense, at least 1, and may
// stun. Killing a monster rewards the attacker and its party. Returns the
// damage dealt.
func (c *Caster) DealDamage(attacker *Avatar, victim Entity, amount int, stunChance float64, stunTime time.Duration) int {
	b := victim.Base()
	if !b.Alive() {
		return 0
	}
	dmg := amount - victim.Defense()
	if dmg < 1 {
		dmg = 1
	}
	b.Health -= dmg
	if b.Health < 0 {
		b.Health = 0
	}
	stunned := false
	if b.Alive() && stunChance > 0 && c.w.Rand.Float64() < stunChance {
		if end := c.w.Now() + stunTime; end > b.StunEnd {
			b.StunEnd = end
		}
		stunned = true
	}
	c.w.record(EventTypeDamage, attacker.name, DamagePayload{
		Attacker: uint32(attacker.id),
		Victim:   uint32(b.ID()),
		Amount:   dmg,
		Stunned:  stunned,
		Killed:   !b.Alive(),
	})
	if b.Alive() {
		return dmg
	}
	switch v := victim.(type) {
	case *Monster:
		v.die(c.w)
		rewardKill(c.w, attacker, v)
	case *Avatar:
		c.w.Log.Info("avatar killed",
			zap.String("attacker", attacker.name),
			zap.String("victim", v.name))
	}
	return dmg
}

// castProgress is the fraction of the current cast completed, for views.
func castProgress(c clock.Clock, a *Avatar) float64 {
	if a.CurrentSkill < 0 || a.CurrentSkill >= len(a.Skills) {
		return 0
	}
	s := &a.Skills[a.CurrentSkill]
	total := s.def.CastTime.Duration(s.Level)
	if total <= 0 {
		return 1
	}
	done := 1 - float64(s.CastRemaining(c))/float64(total)
	if done < 0 {
		return 0
	}
	return done
}
