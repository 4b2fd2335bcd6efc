package movement

import "math"

// Vec2 is a 2D world coordinate or direction.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalize returns the unit vector, or zero for a zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// MoveTowards steps from v toward target by at most maxDelta.
func (v Vec2) MoveTowards(target Vec2, maxDelta float64) Vec2 {
	d := target.Sub(v)
	l := d.Len()
	if l <= maxDelta || l == 0 {
		return target
	}
	return v.Add(d.Scale(maxDelta / l))
}

// ClosestPointOnCircle returns the point of a circle with center c and
// radius r closest to p. Entities are circles for range checks.
func ClosestPointOnCircle(c Vec2, r float64, p Vec2) Vec2 {
	d := p.Sub(c)
	l := d.Len()
	if l <= r {
		return p
	}
	return c.Add(d.Scale(r / l))
}
