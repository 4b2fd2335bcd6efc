// Package world loads the map a zone runs on and exposes it as the
// navigable surface for movement.
package world

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"

	"mmo-avatar/internal/game/spatial"
	"mmo-avatar/internal/movement"
)

//go:embed default_map.toml
var defaultMap []byte

// Map is the on-disk description of a zone.
type Map struct {
	Name          string         `toml:"name"`
	Width         float64        `toml:"width"`
	Height        float64        `toml:"height"`
	CellSize      float64        `toml:"cell_size"`      // navigation resolution
	ObserverRange float64        `toml:"observer_range"` // area of interest radius
	Blocked       []Rect         `toml:"blocked"`
	Spawns        []SpawnPoint   `toml:"spawn"`
	Monsters      []MonsterSpawn `toml:"monster"`
	Npcs          []NpcSpawn     `toml:"npc"`
}

// Rect is an axis aligned obstacle.
type Rect struct {
	MinX float64 `toml:"min_x"`
	MinY float64 `toml:"min_y"`
	MaxX float64 `toml:"max_x"`
	MaxY float64 `toml:"max_y"`
}

// SpawnPoint is where avatars appear and respawn.
type SpawnPoint struct {
	Name string  `toml:"name"`
	X    float64 `toml:"x"`
	Y    float64 `toml:"y"`
}

// MonsterSpawn places one monster of a catalog definition.
type MonsterSpawn struct {
	Monster string  `toml:"monster"`
	X       float64 `toml:"x"`
	Y       float64 `toml:"y"`
}

// NpcSpawn places one npc of a catalog definition. TeleportTo names the
// spawn point the npc sends avatars to; empty means it does not teleport.
type NpcSpawn struct {
	Npc        string  `toml:"npc"`
	X          float64 `toml:"x"`
	Y          float64 `toml:"y"`
	TeleportTo string  `toml:"teleport_to"`
}

// LoadMap reads a TOML map from disk.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", path, err)
	}
	m, err := ParseMap(data)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	return m, nil
}

// ParseMap decodes a TOML map.
func ParseMap(data []byte) (*Map, error) {
	m := &Map{CellSize: 1, ObserverRange: 20}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("map %q: width and height must be positive", m.Name)
	}
	if len(m.Spawns) == 0 {
		return nil, fmt.Errorf("map %q: at least one spawn point required", m.Name)
	}
	return m, nil
}

// DefaultMap returns the map embedded in the binary.
func DefaultMap() (*Map, error) {
	return ParseMap(defaultMap)
}

// Zone is a loaded map: its navigation grid and spawn points. It implements
// movement.Surface and is read-only after construction.
type Zone struct {
	m   *Map
	nav *spatial.NavGrid
}

var _ movement.Surface = (*Zone)(nil)

// NewZone builds navigation data for m. Every spawn point must be walkable.
func NewZone(m *Map) (*Zone, error) {
	nav := spatial.NewNavGrid(m.Width, m.Height, m.CellSize)
	for _, r := range m.Blocked {
		nav.BlockRect(r.MinX, r.MinY, r.MaxX, r.MaxY)
	}
	nav.Build()
	for _, s := range m.Spawns {
		if !nav.Walkable(s.X, s.Y) {
			return nil, fmt.Errorf("spawn %q at (%.1f, %.1f) is not walkable", s.Name, s.X, s.Y)
		}
	}
	for _, ms := range m.Monsters {
		if !nav.Walkable(ms.X, ms.Y) {
			return nil, fmt.Errorf("monster %q at (%.1f, %.1f) is not walkable", ms.Monster, ms.X, ms.Y)
		}
	}
	z := &Zone{m: m, nav: nav}
	for _, ns := range m.Npcs {
		if !nav.Walkable(ns.X, ns.Y) {
			return nil, fmt.Errorf("npc %q at (%.1f, %.1f) is not walkable", ns.Npc, ns.X, ns.Y)
		}
		if _, ok := z.SpawnPoint(ns.TeleportTo); ns.TeleportTo != "" && !ok {
			return nil, fmt.Errorf("npc %q: unknown teleport destination %q", ns.Npc, ns.TeleportTo)
		}
	}
	return z, nil
}

// Default builds the embedded zone.
func Default() (*Zone, error) {
	m, err := DefaultMap()
	if err != nil {
		return nil, err
	}
	return NewZone(m)
}

func (z *Zone) Map() *Map { return z.m }
func (z *Zone) Nav() *spatial.NavGrid { return z.nav }
func (z *Zone) ObserverRange() float64 { return z.m.ObserverRange }

// Nearest implements movement.Surface.
func (z *Zone) Nearest(from, to movement.Vec2) (movement.Vec2, bool) {
	p, ok := z.nav.Nearest(spatial.Point{X: from.X, Y: from.Y}, spatial.Point{X: to.X, Y: to.Y})
	return movement.Vec2{X: p.X, Y: p.Y}, ok
}

// Path implements movement.Surface.
func (z *Zone) Path(from, to movement.Vec2) ([]movement.Vec2, bool) {
	pts, ok := z.nav.Path(spatial.Point{X: from.X, Y: from.Y}, spatial.Point{X: to.X, Y: to.Y})
	if !ok {
		return nil, false
	}
	out := make([]movement.Vec2, len(pts))
	for i, p := range pts {
		out[i] = movement.Vec2{X: p.X, Y: p.Y}
	}
	return out, true
}

// Walkable implements movement.Surface.
func (z *Zone) Walkable(p movement.Vec2) bool {
	return z.nav.Walkable(p.X, p.Y)
}

// SpawnPoint looks up a spawn point by name.
func (z *Zone) SpawnPoint(name string) (movement.Vec2, bool) {
	for _, s := range z.m.Spawns {
		if s.Name == name {
			return movement.Vec2{X: s.X, Y: s.Y}, true
		}
	}
	return movement.Vec2{}, false
}

// ErrNoSpawn is returned by NearestSpawn on a zone without spawn points.
var ErrNoSpawn = errors.New("world: no spawn point")

// NearestSpawn returns the spawn point closest to p.
func (z *Zone) NearestSpawn(p movement.Vec2) (movement.Vec2, error) {
	best, bestDist := movement.Vec2{}, math.MaxFloat64
	for _, s := range z.m.Spawns {
		c := movement.Vec2{X: s.X, Y: s.Y}
		if d := c.Dist(p); d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist == math.MaxFloat64 {
		return best, ErrNoSpawn
	}
	return best, nil
}
