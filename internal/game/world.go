package game

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/movement"
)

// Terrain is the navigable map of the zone.
type Terrain interface {
	movement.Surface
	NearestSpawn(p movement.Vec2) (movement.Vec2, error)
}

// Rules are the tunable constants of the simulation.
type Rules struct {
	TickInterval          time.Duration
	SyncInterval          time.Duration // periodic movement broadcast
	InteractionRange      float64       // loot, trade
	ObserverRange         float64       // area of interest, party share
	DeathExperienceLoss   float64       // fraction of experienceMax lost on death
	RespawnHealthFraction float64
	RiskyActionCooldown   time.Duration // between trade requests
	MaxLevelDifference    int           // experience balancing clamp
	PartyExperienceBonus  float64       // extra experience per additional member
	TradeSlots            int
	RecipeSize            int
}

// DefaultRules returns the stock rule set.
func DefaultRules() Rules {
	return Rules{
		TickInterval:          50 * time.Millisecond,
		SyncInterval:          100 * time.Millisecond,
		InteractionRange:      4,
		ObserverRange:         25,
		DeathExperienceLoss:   0.05,
		RespawnHealthFraction: 0.5,
		RiskyActionCooldown:   3 * time.Second,
		MaxLevelDifference:    20,
		PartyExperienceBonus:  0.1,
		TradeSlots:            6,
		RecipeSize:            6,
	}
}

// World bundles what the simulation consults while ticking. It is passed
// explicitly; there is no package level state.
type World struct {
	Registry *Registry
	Catalog  *content.Catalog
	Clock    clock.Clock
	Terrain  Terrain
	Parties  PartyDirectory
	Rules    Rules
	Rand     *rand.Rand
	Log      *zap.Logger
	Journal  *Journal
}

// Now reads the simulation clock.
func (w *World) Now() time.Duration { return w.Clock.Now() }

func (w *World) record(t EventType, actor string, payload any) {
	if w.Journal != nil {
		w.Journal.Emit(t, actor, payload)
	}
}
