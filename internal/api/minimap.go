package api

import (
	"io"

	"github.com/fogleman/gg"

	"mmo-avatar/internal/game"
	"mmo-avatar/internal/world"
)

// MinimapScale is the default pixels per world unit.
const MinimapScale = 4.0

// RenderMinimap draws the zone's navigation grid, spawn points, monsters and
// avatars as a PNG. It is an operator diagnostic, not game presentation.
func RenderMinimap(out io.Writer, zone *world.Zone, view *game.WorldView, scale float64) error {
	if scale <= 0 {
		scale = MinimapScale
	}
	m := zone.Map()
	dc := gg.NewContext(int(m.Width*scale), int(m.Height*scale))
	dc.SetRGB(0.12, 0.16, 0.12)
	dc.Clear()

	// blocked cells
	cols, rows, cell := zone.Nav().Dimensions()
	dc.SetRGB(0.2, 0.3, 0.55)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if zone.Nav().Blocked(col, row) {
				dc.DrawRectangle(float64(col)*cell*scale, float64(row)*cell*scale, cell*scale, cell*scale)
			}
		}
	}
	dc.Fill()

	dc.SetRGB(0.95, 0.85, 0.3)
	for _, s := range m.Spawns {
		dc.DrawRectangle(s.X*scale-3, s.Y*scale-3, 6, 6)
	}
	dc.Fill()

	if view == nil {
		return dc.EncodePNG(out)
	}

	for _, mv := range view.Monsters {
		if mv.Alive {
			dc.SetRGB(0.85, 0.25, 0.2)
		} else {
			dc.SetRGB(0.4, 0.4, 0.4)
		}
		dc.DrawCircle(mv.Position.X*scale, mv.Position.Y*scale, 3)
		dc.Fill()
	}

	for _, av := range view.Avatars {
		switch av.State {
		case game.StateDead:
			dc.SetRGB(0.5, 0.5, 0.5)
		case game.StateCasting:
			dc.SetRGB(0.7, 0.4, 0.95)
		default:
			dc.SetRGB(0.3, 0.8, 0.95)
		}
		dc.DrawCircle(av.Position.X*scale, av.Position.Y*scale, 4)
		dc.Fill()
	}
	return dc.EncodePNG(out)
}
