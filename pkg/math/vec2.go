// Package math provides 2D vector and polygon helpers shared by the terrain
// pipeline and the physics wrapper.
package math

import "math"

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float64
}

// V2 is shorthand for Vec2{x, y}.
func V2(x, y float64) Vec2 {
	return Vec2{x, y}
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dot returns the dot product.
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Cross returns the z component of the 3D cross product.
func (v Vec2) Cross(other Vec2) float64 {
	return v.X*other.Y - v.Y*other.X
}

// Length returns the magnitude.
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize returns a unit vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Distance returns the distance to another point.
func (v Vec2) Distance(other Vec2) float64 {
	return v.Sub(other).Length()
}

// Orient returns twice the signed area of triangle (a, b, c).
// Positive means a counter-clockwise turn in a y-up frame.
func Orient(a, b, c Vec2) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// SignedArea returns the shoelace area of a closed ring.
// Positive for counter-clockwise rings in a y-up frame.
func SignedArea(ring []Vec2) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := range n {
		sum += ring[i].Cross(ring[(i+1)%n])
	}
	return sum / 2
}

// PointInPolygon reports whether p lies inside the closed ring (even-odd rule).
// Points exactly on an edge may report either way.
func PointInPolygon(p Vec2, ring []Vec2) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// DistanceToSegmentSq returns the squared distance from p to segment ab.
func DistanceToSegmentSq(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	d := ab.Dot(ab)
	t := 0.0
	if d > 0 {
		t = ab.Dot(p.Sub(a)) / d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	q := a.Add(ab.Scale(t))
	dx, dy := q.X-p.X, q.Y-p.Y
	return dx*dx + dy*dy
}
