// Package spatial holds the grid structures the simulation queries every
// tick: an area-of-interest grid for neighbor lookups and a navigation grid
// for walkability, reachability and paths.
//
// Both use flat row-major slices indexed by cell and store entity ids, not
// pointers, so a rebuild each tick does not allocate.
package spatial

import "math"

// Grid buckets entity ids by cell for radius queries. It is rebuilt from
// scratch every tick with Clear and Insert.
//
// Pick a cell size close to the largest query radius (the observer range).
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
}

// NewGrid creates a grid covering width x height.
func NewGrid(width, height, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, 4)
	}
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear empties every cell and keeps capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds id at (x, y). Positions outside the grid land in the edge cell.
func (g *Grid) Insert(id uint32, x, y float64) {
	col, row := g.clamp(int(math.Floor(x*g.invCellSize)), int(math.Floor(y*g.invCellSize)))
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
}

func (g *Grid) clamp(col, row int) (int, int) {
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// QueryRadius returns candidate ids whose cell overlaps the circle. The
// caller does the exact distance check.
//
// The returned slice is reused by the next call.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, minRow := g.clamp(int(math.Floor((cx-radius)*g.invCellSize)), int(math.Floor((cy-radius)*g.invCellSize)))
	maxCol, maxRow := g.clamp(int(math.Floor((cx+radius)*g.invCellSize)), int(math.Floor((cy+radius)*g.invCellSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Stats summarizes occupancy.
func (g *Grid) Stats() GridStats {
	var s GridStats
	s.TotalCells = len(g.cells)
	for _, cell := range g.cells {
		n := len(cell)
		s.TotalEntities += n
		if n > s.MaxInCell {
			s.MaxInCell = n
		}
		if n > 0 {
			s.NonEmptyCells++
		}
	}
	return s
}

// GridStats is reported on the debug endpoint.
type GridStats struct {
	TotalCells    int `json:"totalCells"`
	NonEmptyCells int `json:"nonEmptyCells"`
	TotalEntities int `json:"totalEntities"`
	MaxInCell     int `json:"maxInCell"`
}
