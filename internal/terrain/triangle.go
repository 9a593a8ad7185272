package terrain

import (
	"github.com/Faultbox/molee/pkg/math"
)

// Triangle is three world-space points in counter-clockwise order.
type Triangle [3]math.Vec2

// SignedArea returns the triangle's area; positive when counter-clockwise.
func (t Triangle) SignedArea() float64 {
	return math.Orient(t[0], t[1], t[2]) / 2
}

// HasDuplicatePoints reports whether any two vertices coincide.
func (t Triangle) HasDuplicatePoints() bool {
	return t[0] == t[1] || t[1] == t[2] || t[0] == t[2]
}

// IsDegenerate reports whether the triangle has coincident vertices or no area.
func (t Triangle) IsDegenerate() bool {
	return t.HasDuplicatePoints() || t.SignedArea() == 0
}

// Vertices returns the points as a slice.
func (t Triangle) Vertices() []math.Vec2 {
	return []math.Vec2{t[0], t[1], t[2]}
}

// Centroid returns the average of the three vertices.
func (t Triangle) Centroid() math.Vec2 {
	return t[0].Add(t[1]).Add(t[2]).Scale(1.0 / 3.0)
}

// TotalArea sums the absolute areas of ts.
func TotalArea(ts []Triangle) float64 {
	sum := 0.0
	for _, t := range ts {
		a := t.SignedArea()
		if a < 0 {
			a = -a
		}
		sum += a
	}
	return sum
}
