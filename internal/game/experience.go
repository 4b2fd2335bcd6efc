package game

import (
	"math"

	"go.uber.org/zap"
)

// ExperienceMax is the experience needed for the next level.
func (a *Avatar) ExperienceMax() int64 {
	return a.world.Catalog.Template().ExperienceMax.Get(a.Level)
}

// GainExperience adds experience and levels up while the bar is full.
// At the level cap experience stops at the bar.
func (a *Avatar) GainExperience(amount int64) {
	a.Experience += amount
	maxLevel := a.world.Catalog.Template().MaxLevel
	levels := 0
	for a.Level < maxLevel && a.Experience >= a.ExperienceMax() {
		a.Experience -= a.ExperienceMax()
		a.Level++
		levels++
	}
	if a.Level >= maxLevel {
		if em := a.ExperienceMax(); a.Experience > em {
			a.Experience = em
		}
	}
	if levels > 0 {
		a.clampVitals()
		a.notify("level_up", a.Level)
		a.world.Log.Info("avatar leveled up", zap.String("avatar", a.name), zap.Int("level", a.Level))
	}
}

// BalanceExpReward scales reward by the level difference between victim and
// attacker, clamped to maxDiff: up to double for stronger victims, down to
// nothing for much weaker ones.
func BalanceExpReward(reward int64, attackerLevel, victimLevel, maxDiff int) int64 {
	if maxDiff <= 0 {
		return reward
	}
	diff := victimLevel - attackerLevel
	if diff > maxDiff {
		diff = maxDiff
	} else if diff < -maxDiff {
		diff = -maxDiff
	}
	multiplier := 1 + float64(diff)/float64(maxDiff)
	return int64(float64(reward) * multiplier)
}

// PartyExperienceShare is one member's cut of total: an even share rounded
// up, balanced by level, plus bonus per additional member.
func PartyExperienceShare(total int64, members int, bonusPerMember float64, memberLevel, victimLevel, maxDiff int) int64 {
	if members < 1 {
		members = 1
	}
	share := int64(math.Ceil(float64(total) / float64(members)))
	balanced := BalanceExpReward(share, memberLevel, victimLevel, maxDiff)
	bonus := int64(math.Round(float64(balanced) * float64(members-1) * bonusPerMember))
	return balanced + bonus
}

// closePartyMembers returns the living members of a's party within observer
// range, a included. Without a party, or when shares reports the party keeps
// this reward to itself, it is just a.
func closePartyMembers(w *World, a *Avatar, shares func(Party) bool) []*Avatar {
	if w.Parties == nil {
		return []*Avatar{a}
	}
	party, ok := w.Parties.PartyOf(a.name)
	if !ok || !shares(party) {
		return []*Avatar{a}
	}
	var out []*Avatar
	for _, name := range party.Members {
		m, ok := w.Registry.AvatarByName(name)
		if !ok || !m.Alive() {
			continue
		}
		if m == a || m.Position().Dist(a.Position()) <= w.Rules.ObserverRange {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = append(out, a)
	}
	return out
}

// rewardKill hands out the monster's experience, shared with close party
// members.
func rewardKill(w *World, killer *Avatar, m *Monster) {
	maxDiff := w.Rules.MaxLevelDifference
	members := closePartyMembers(w, killer, func(p Party) bool { return p.ShareExperience })
	if len(members) == 1 {
		killer.SkillExperience += BalanceExpReward(m.def.SkillExperience, killer.Level, m.Level, maxDiff)
		killer.GainExperience(BalanceExpReward(m.def.Experience, killer.Level, m.Level, maxDiff))
		return
	}
	for _, member := range members {
		member.SkillExperience += PartyExperienceShare(m.def.SkillExperience, len(members),
			w.Rules.PartyExperienceBonus, member.Level, m.Level, maxDiff)
		member.GainExperience(PartyExperienceShare(m.def.Experience, len(members),
			w.Rules.PartyExperienceBonus, member.Level, m.Level, maxDiff))
	}
}

// shareGold splits looted gold among close party members, rounded up.
func shareGold(w *World, looter *Avatar, gold int64) {
	members := closePartyMembers(w, looter, func(p Party) bool { return p.ShareGold })
	share := int64(math.Ceil(float64(gold) / float64(len(members))))
	for _, m := range members {
		m.Gold += share
	}
}
