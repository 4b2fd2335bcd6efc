package spatial

import "math"

// Point is a world position.
type Point struct {
	X, Y float64
}

// 8-way neighbor offsets and step costs.
var (
	nbDX   = [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	nbDY   = [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
	nbCost = [8]float32{math.Sqrt2, 1, math.Sqrt2, 1, 1, math.Sqrt2, 1, math.Sqrt2}
)

const unreached = float32(math.MaxFloat32)

// NavGrid is the walkable surface of a map. Cells are either open or blocked;
// open cells are grouped into connected regions so reachability is a label
// comparison. Diagonal steps never cut a blocked corner.
//
// Call Build after changing blocked cells.
type NavGrid struct {
	cols, rows  int
	cellSize    float64
	invCellSize float64
	blocked     []bool
	region      []int32
	cost        []float32
	queue       []int
	visited     []bool
}

// NewNavGrid creates an all-open grid covering width x height.
func NewNavGrid(width, height, cellSize float64) *NavGrid {
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
	size := cols * rows
	n := &NavGrid{
		cols:        cols,
		rows:        rows,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		blocked:     make([]bool, size),
		region:      make([]int32, size),
		cost:        make([]float32, size),
		queue:       make([]int, 0, size),
		visited:     make([]bool, size),
	}
	n.Build()
	return n
}

// Dimensions returns the grid size.
func (n *NavGrid) Dimensions() (cols, rows int, cellSize float64) {
	return n.cols, n.rows, n.cellSize
}

// cell returns the cell index of a position, or -1 outside the grid.
func (n *NavGrid) cell(x, y float64) int {
	col := int(math.Floor(x * n.invCellSize))
	row := int(math.Floor(y * n.invCellSize))
	if col < 0 || col >= n.cols || row < 0 || row >= n.rows {
		return -1
	}
	return row*n.cols + col
}

func (n *NavGrid) center(idx int) Point {
	col := idx % n.cols
	row := idx / n.cols
	return Point{
		X: (float64(col) + 0.5) * n.cellSize,
		Y: (float64(row) + 0.5) * n.cellSize,
	}
}

// SetCellBlocked marks the cell containing (x, y).
func (n *NavGrid) SetCellBlocked(x, y float64, blocked bool) {
	if idx := n.cell(x, y); idx >= 0 {
		n.blocked[idx] = blocked
	}
}

// BlockRect blocks every cell overlapping the rectangle.
func (n *NavGrid) BlockRect(minX, minY, maxX, maxY float64) {
	c0 := int(math.Floor(minX * n.invCellSize))
	r0 := int(math.Floor(minY * n.invCellSize))
	c1 := int(math.Ceil(maxX*n.invCellSize)) - 1
	r1 := int(math.Ceil(maxY*n.invCellSize)) - 1
	for r := max(r0, 0); r <= min(r1, n.rows-1); r++ {
		for c := max(c0, 0); c <= min(c1, n.cols-1); c++ {
			n.blocked[r*n.cols+c] = true
		}
	}
}

// Blocked reports whether a cell is blocked. Cells outside the grid count as
// blocked.
func (n *NavGrid) Blocked(col, row int) bool {
	if col < 0 || col >= n.cols || row < 0 || row >= n.rows {
		return true
	}
	return n.blocked[row*n.cols+col]
}

// step returns the neighbor index for direction d, or -1 when the step leaves
// the grid, enters a blocked cell or cuts a blocked corner.
func (n *NavGrid) step(idx, d int) int {
	col := idx%n.cols + nbDX[d]
	row := idx/n.cols + nbDY[d]
	if col < 0 || col >= n.cols || row < 0 || row >= n.rows {
		return -1
	}
	nidx := row*n.cols + col
	if n.blocked[nidx] {
		return -1
	}
	if nbDX[d] != 0 && nbDY[d] != 0 {
		if n.blocked[idx/n.cols*n.cols+col] || n.blocked[row*n.cols+idx%n.cols] {
			return -1
		}
	}
	return nidx
}

// Build labels connected regions. Blocked cells get region -1.
func (n *NavGrid) Build() {
	for i := range n.region {
		n.region[i] = -1
	}
	var label int32
	for start := range n.region {
		if n.blocked[start] || n.region[start] >= 0 {
			continue
		}
		n.region[start] = label
		n.queue = append(n.queue[:0], start)
		for head := 0; head < len(n.queue); head++ {
			cur := n.queue[head]
			for d := 0; d < 8; d++ {
				nidx := n.step(cur, d)
				if nidx < 0 || n.region[nidx] >= 0 {
					continue
				}
				n.region[nidx] = label
				n.queue = append(n.queue, nidx)
			}
		}
		label++
	}
}

// Walkable reports whether (x, y) lies on an open cell.
func (n *NavGrid) Walkable(x, y float64) bool {
	idx := n.cell(x, y)
	return idx >= 0 && !n.blocked[idx]
}

// Reachable reports whether a path exists between two positions.
func (n *NavGrid) Reachable(from, to Point) bool {
	a, b := n.cell(from.X, from.Y), n.cell(to.X, to.Y)
	if a < 0 || b < 0 {
		return false
	}
	return n.region[a] >= 0 && n.region[a] == n.region[b]
}

// Nearest returns the position closest to `to` that is reachable from
// `from`. An already reachable target is returned unchanged. ok is false when
// `from` is not on an open cell.
func (n *NavGrid) Nearest(from, to Point) (Point, bool) {
	a := n.cell(from.X, from.Y)
	if a < 0 || n.region[a] < 0 {
		return from, false
	}
	if n.Reachable(from, to) {
		return to, true
	}
	want := n.region[a]

	// search outward from the clamped target cell over all cells
	tc := int(math.Floor(to.X * n.invCellSize))
	tr := int(math.Floor(to.Y * n.invCellSize))
	tc = min(max(tc, 0), n.cols-1)
	tr = min(max(tr, 0), n.rows-1)
	start := tr*n.cols + tc

	for i := range n.visited {
		n.visited[i] = false
	}
	n.visited[start] = true
	n.queue = append(n.queue[:0], start)
	best, bestDist := -1, math.MaxFloat64
	for head := 0; head < len(n.queue); head++ {
		cur := n.queue[head]
		if n.region[cur] == want {
			c := n.center(cur)
			d := math.Hypot(c.X-to.X, c.Y-to.Y)
			if d < bestDist {
				best, bestDist = cur, d
			}
			continue
		}
		// once a match exists, stop expanding cells farther than it
		if best >= 0 {
			c := n.center(cur)
			if math.Hypot(c.X-to.X, c.Y-to.Y)-n.cellSize > bestDist {
				continue
			}
		}
		col, row := cur%n.cols, cur/n.cols
		for d := 0; d < 8; d++ {
			nc, nr := col+nbDX[d], row+nbDY[d]
			if nc < 0 || nc >= n.cols || nr < 0 || nr >= n.rows {
				continue
			}
			nidx := nr*n.cols + nc
			if !n.visited[nidx] {
				n.visited[nidx] = true
				n.queue = append(n.queue, nidx)
			}
		}
	}
	if best < 0 {
		return from, true
	}
	return n.center(best), true
}

// Path returns waypoints from `from` to `to`, ending exactly at `to`. ok is
// false when the two positions are not in the same region. Collinear
// waypoints are dropped.
func (n *NavGrid) Path(from, to Point) ([]Point, bool) {
	startIdx, goalIdx := n.cell(from.X, from.Y), n.cell(to.X, to.Y)
	if !n.Reachable(from, to) {
		return nil, false
	}
	if startIdx == goalIdx {
		return []Point{to}, true
	}

	// integration field from the goal, then gradient descent from the start
	for i := range n.cost {
		n.cost[i] = unreached
	}
	n.cost[goalIdx] = 0
	n.queue = append(n.queue[:0], goalIdx)
	for head := 0; head < len(n.queue); head++ {
		cur := n.queue[head]
		for d := 0; d < 8; d++ {
			nidx := n.step(cur, d)
			if nidx < 0 {
				continue
			}
			if c := n.cost[cur] + nbCost[d]; c < n.cost[nidx] {
				n.cost[nidx] = c
				n.queue = append(n.queue, nidx)
			}
		}
	}

	var cells []int
	cur := startIdx
	for steps := 0; cur != goalIdx && steps < len(n.cost); steps++ {
		next := -1
		best := n.cost[cur]
		for d := 0; d < 8; d++ {
			nidx := n.step(cur, d)
			if nidx >= 0 && n.cost[nidx] < best {
				best, next = n.cost[nidx], nidx
			}
		}
		if next < 0 {
			return nil, false
		}
		cells = append(cells, next)
		cur = next
	}

	var path []Point
	for i, idx := range cells {
		if idx == goalIdx {
			break
		}
		if i+1 < len(cells) && i > 0 {
			prev, nxt := cells[i-1], cells[i+1]
			if idx-prev == nxt-idx {
				continue
			}
		}
		path = append(path, n.center(idx))
	}
	return append(path, to), true
}
