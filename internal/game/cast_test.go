package game

import (
	"testing"
	"time"

	"mmo-avatar/internal/movement"
)

// TestCheckSelf tests the caster side requirements of a skill.
func TestCheckSelf(t *testing.T) {
	tests := []struct {
		name  string
		skill string
		setup func(t *testing.T, tw *testWorld, a *Avatar)
		want  bool
	}{
		{"learned by default", "Normal Attack", func(*testing.T, *testWorld, *Avatar) {}, true},
		{"not learned", "Fireball", func(*testing.T, *testWorld, *Avatar) {}, false},
		{"missing weapon", "Whirlwind", func(t *testing.T, tw *testWorld, a *Avatar) {
			a.Skills[skillIndex(t, a, "Whirlwind")].Level = 1
		}, false},
		{"weapon equipped", "Whirlwind", func(t *testing.T, tw *testWorld, a *Avatar) {
			a.Skills[skillIndex(t, a, "Whirlwind")].Level = 1
			equip(t, tw, a, "Wooden Sword", 0)
		}, true},
		{"not enough mana", "Fireball", func(t *testing.T, tw *testWorld, a *Avatar) {
			a.Skills[skillIndex(t, a, "Fireball")].Level = 1
			a.Mana = 5
		}, false},
		{"on cooldown", "Normal Attack", func(t *testing.T, tw *testWorld, a *Avatar) {
			a.Skills[skillIndex(t, a, "Normal Attack")].CooldownEnd = tw.Now() + time.Second
		}, false},
		{"dead", "Normal Attack", func(t *testing.T, tw *testWorld, a *Avatar) { a.Health = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := newTestWorld(t)
			a := tw.addAvatar(t, "alice", village)
			tt.setup(t, tw, a)
			c := NewCaster(tw.World)
			if got := c.CheckSelf(a, skillIndex(t, a, tt.skill)); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestCheckTarget verifies who may be targeted by an offensive skill.
func TestCheckTarget(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	bob := tw.addAvatar(t, "bob", movement.Vec2{X: 16.5, Y: 40.5})
	m := tw.addMonster(t, "Bandit", movement.Vec2{X: 14.5, Y: 40.5})
	c := NewCaster(tw.World)
	attack := skillIndex(t, a, "Normal Attack")

	a.Target = 0
	if c.CheckTarget(a, attack) {
		t.Error("Expected no target to fail")
	}
	a.Target = a.ID()
	if c.CheckTarget(a, attack) {
		t.Error("Expected self to fail")
	}
	a.Target = m.ID()
	if !c.CheckTarget(a, attack) {
		t.Error("Expected a living monster to pass")
	}
	a.Target = bob.ID()
	if !c.CheckTarget(a, attack) {
		t.Error("Expected another avatar to pass")
	}

	if err := tw.Parties.Invite("alice", "bob", tw.Now()); err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	if _, err := tw.Parties.Accept("bob", "alice", tw.Now()); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if c.CheckTarget(a, attack) {
		t.Error("Expected a party member to fail")
	}

	heal := skillIndex(t, a, "Healing Circle")
	a.Target = 0
	if !c.CheckTarget(a, heal) {
		t.Error("Expected a self targeted skill to pass without a target")
	}
}

// TestSlashHitsBoxInFront tests that a slash only hits hostile entities in
// the box ahead of the caster.
func TestSlashHitsBoxInFront(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	front := tw.addMonster(t, "Bandit", movement.Vec2{X: 17.5, Y: 40.5})
	behind := tw.addMonster(t, "Bandit", movement.Vec2{X: 12.5, Y: 40.5})
	aside := tw.addMonster(t, "Bandit", movement.Vec2{X: 16.5, Y: 44.5})
	friend := tw.addAvatar(t, "bob", movement.Vec2{X: 17.5, Y: 41.5})
	stranger := tw.addAvatar(t, "carol", movement.Vec2{X: 18.5, Y: 39.5})
	tw.Parties.Invite("alice", "bob", tw.Now())
	tw.Parties.Accept("bob", "alice", tw.Now())

	whirl := skillIndex(t, a, "Whirlwind")
	a.Skills[whirl].Level = 1
	equip(t, tw, a, "Wooden Sword", 0)

	if r := tw.gate.Execute(a, UseSkill{Index: whirl, Look: movement.Vec2{X: 1}}); r != ReasonOK {
		t.Fatalf("UseSkill rejected: %q", r)
	}
	if s := tw.tick(t, a); s != StateCasting {
		t.Fatalf("Expected CASTING, got %s", s)
	}
	if a.Mana != 60 {
		t.Errorf("Expected 60 mana after paying 20, got %d", a.Mana)
	}
	tw.clk.Advance(time.Second)
	if s := tw.tick(t, a); s != StateIdle {
		t.Fatalf("Expected IDLE, got %s", s)
	}

	// 20 skill + 2 avatar + 4 sword
	if front.Health != 80-24 {
		t.Errorf("Expected front bandit at 56, got %d", front.Health)
	}
	if behind.Health != 80 || aside.Health != 80 {
		t.Errorf("Expected bandits outside the box untouched, got %d and %d", behind.Health, aside.Health)
	}
	if friend.Health != friend.HealthMax() {
		t.Errorf("Expected party member untouched, got %d", friend.Health)
	}
	if stranger.Health != 100-25 {
		t.Errorf("Expected stranger at 75, got %d", stranger.Health)
	}
}

// TestAreaHeal verifies living avatars in range are healed up to their
// maximum.
func TestAreaHeal(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	near := tw.addAvatar(t, "bob", movement.Vec2{X: 18.5, Y: 40.5})
	far := tw.addAvatar(t, "carol", movement.Vec2{X: 25.5, Y: 40.5})
	near.Health = 30
	far.Health = 30
	a.Health = 90

	heal := skillIndex(t, a, "Healing Circle")
	a.Skills[heal].Level = 1
	a.CurrentSkill = heal
	NewCaster(tw.World).FinishCast(a)

	if near.Health != 70 {
		t.Errorf("Expected 70 health in range, got %d", near.Health)
	}
	if far.Health != 30 {
		t.Errorf("Expected no heal out of range, got %d", far.Health)
	}
	if a.Health != 100 {
		t.Errorf("Expected caster capped at 100, got %d", a.Health)
	}
	if a.Skills[heal].Ready(tw.Clock) {
		t.Error("Expected the skill on cooldown")
	}
}

// TestBuff tests that a buff raises its stat until it expires.
func TestBuff(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	skin := skillIndex(t, a, "Stoneskin")
	a.Skills[skin].Level = 1
	a.CurrentSkill = skin
	NewCaster(tw.World).FinishCast(a)

	if a.Defense() != 6 {
		t.Errorf("Expected defense 6 with the buff, got %d", a.Defense())
	}
	tw.clk.Advance(20 * time.Second)
	a.expireBuffs(tw.Clock)
	if len(a.Buffs) != 0 || a.Defense() != 1 {
		t.Errorf("Expected the buff gone, got %d buffs and defense %d", len(a.Buffs), a.Defense())
	}
}

// TestBuffFriendlyTarget tests that a buff lands on a selected party member
// in reach and on the caster otherwise.
func TestBuffFriendlyTarget(t *testing.T) {
	tests := []struct {
		name   string
		party  bool
		pos    movement.Vec2
		toAlly bool
	}{
		{"party member in reach", true, movement.Vec2{X: 17.5, Y: 40.5}, true},
		{"party member too far", true, movement.Vec2{X: 25.5, Y: 40.5}, false},
		{"stranger", false, movement.Vec2{X: 17.5, Y: 40.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := newTestWorld(t)
			a := tw.addAvatar(t, "alice", village)
			b := tw.addAvatar(t, "bob", tt.pos)
			if tt.party {
				tw.Parties.Invite("alice", "bob", tw.Now())
				tw.Parties.Accept("bob", "alice", tw.Now())
			}
			skin := skillIndex(t, a, "Stoneskin")
			a.Skills[skin].Level = 1
			a.Target = b.ID()
			a.CurrentSkill = skin
			NewCaster(tw.World).FinishCast(a)

			buffed, other := a, b
			if tt.toAlly {
				buffed, other = b, a
			}
			if len(buffed.Buffs) != 1 || len(other.Buffs) != 0 {
				t.Errorf("Expected the buff on %s only, got %d and %d", buffed.Name(), len(buffed.Buffs), len(other.Buffs))
			}
		})
	}
}

// TestDealDamage tests defense, the minimum hit and stun stacking.
func TestDealDamage(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	bob := tw.addAvatar(t, "bob", movement.Vec2{X: 16.5, Y: 40.5})
	c := NewCaster(tw.World)

	if dmg := c.DealDamage(a, bob, 11, 0, 0); dmg != 10 {
		t.Errorf("Expected 10 after defense, got %d", dmg)
	}
	if dmg := c.DealDamage(a, bob, 0, 0, 0); dmg != 1 {
		t.Errorf("Expected minimum damage 1, got %d", dmg)
	}
	if bob.Health != 89 {
		t.Errorf("Expected 89 health, got %d", bob.Health)
	}

	c.DealDamage(a, bob, 2, 1, 2*time.Second)
	if bob.StunEnd != tw.Now()+2*time.Second {
		t.Errorf("Expected stun for 2s, got end %v", bob.StunEnd)
	}
	c.DealDamage(a, bob, 2, 1, time.Second)
	if bob.StunEnd != tw.Now()+2*time.Second {
		t.Errorf("Expected the longer stun kept, got end %v", bob.StunEnd)
	}

	if dmg := c.DealDamage(a, bob, 500, 1, time.Minute); dmg != 499 {
		t.Errorf("Expected 499, got %d", dmg)
	}
	if bob.Health != 0 {
		t.Errorf("Expected health floored at 0, got %d", bob.Health)
	}
	if c.DealDamage(a, bob, 10, 0, 0) != 0 {
		t.Error("Expected no damage to a dead avatar")
	}
}

// TestMonsterKillRewards verifies a kill rolls loot, schedules the respawn
// and pays experience balanced by level.
func TestMonsterKillRewards(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.addAvatar(t, "alice", village)
	m := tw.addMonster(t, "Bandit", movement.Vec2{X: 16.5, Y: 40.5})

	NewCaster(tw.World).DealDamage(a, m, 1000, 0, 0)
	if m.Alive() {
		t.Fatal("Expected the bandit dead")
	}
	if m.LootGold < 5 || m.LootGold > 20 {
		t.Errorf("Expected loot gold in 5..20, got %d", m.LootGold)
	}
	if m.RespawnAt != tw.Now()+15*time.Second {
		t.Errorf("Expected respawn in 15s, got %v", m.RespawnAt)
	}
	// level 2 victim for a level 1 killer: +5%
	if a.Experience != 31 {
		t.Errorf("Expected 31 experience, got %d", a.Experience)
	}
	if a.SkillExperience != 10 {
		t.Errorf("Expected 10 skill experience, got %d", a.SkillExperience)
	}

	tw.clk.Advance(15 * time.Second)
	m.update(tw.World)
	if !m.Alive() || m.Health != 80 || m.LootGold != 0 {
		t.Errorf("Expected respawned bandit, got health %d gold %d", m.Health, m.LootGold)
	}
}
