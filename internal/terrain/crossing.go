package terrain

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/pkg/math"
)

// Simplifying rings one at a time can move an edge up to Tolerance cells
// across a neighbouring ring. Exact rings only ever meet at shared vertices,
// so every conflicting shape goes back to its exact rings until none remain.

// resolveCrossings reverts each simplified shape that crosses, touches or
// nests wrongly against its own rings or another shape's. It returns the
// number of shapes reverted.
func resolveCrossings(ts []tracedShape) int {
	anySimplified := false
	for _, t := range ts {
		anySimplified = anySimplified || t.simplified
	}
	if !anySimplified {
		return 0
	}

	shapes := make([]Shape, len(ts))
	bothExact := func(i, j int) bool { return !ts[i].simplified && !ts[j].simplified }
	reverted := 0
	for {
		for i := range ts {
			shapes[i] = ts[i].shape
		}
		n := 0
		for i, bad := range crossingShapes(shapes, bothExact) {
			if bad && ts[i].simplified {
				ts[i].shape, ts[i].simplified = ts[i].exact, false
				n++
			}
		}
		if n == 0 {
			break
		}
		reverted += n
	}

	if reverted > 0 {
		logger.Named(logger.StageContour).Debug("simplified shapes reverted to exact rings",
			zap.Int("shapes", reverted),
			zap.Int("total", len(ts)))
	}
	return reverted
}

type segment struct {
	a, b       math.Vec2
	shape      int
	minX, maxX float64
	minY, maxY float64
}

type bounds struct {
	minX, maxX float64
	minY, maxY float64
}

func (b bounds) overlaps(o bounds) bool {
	return b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

func ringBounds(r ContourPath) bounds {
	b := bounds{minX: r[0].X, maxX: r[0].X, minY: r[0].Y, maxY: r[0].Y}
	for _, v := range r[1:] {
		b.minX, b.maxX = min(b.minX, v.X), max(b.maxX, v.X)
		b.minY, b.maxY = min(b.minY, v.Y), max(b.maxY, v.Y)
	}
	return b
}

// crossingShapes flags every shape involved in a conflict: two edges meeting
// anywhere but a shared endpoint, a hole outside its outer ring or inside a
// sibling hole, or an outer ring lying in another shape's solid area.
// Pairs for which skip reports true are not compared; skip may be nil.
func crossingShapes(shapes []Shape, skip func(i, j int) bool) []bool {
	bad := make([]bool, len(shapes))
	ignore := func(i, j int) bool { return skip != nil && skip(i, j) }

	var segs []segment
	for i, s := range shapes {
		segs = appendSegments(segs, s.Outer, i)
		for _, h := range s.Holes {
			segs = appendSegments(segs, h, i)
		}
	}
	sort.Slice(segs, func(x, y int) bool { return segs[x].minX < segs[y].minX })
	for i, s := range segs {
		for _, u := range segs[i+1:] {
			if u.minX > s.maxX {
				break
			}
			if u.minY > s.maxY || u.maxY < s.minY || ignore(s.shape, u.shape) {
				continue
			}
			if segmentsConflict(s.a, s.b, u.a, u.b) {
				bad[s.shape], bad[u.shape] = true, true
			}
		}
	}

	for i, s := range shapes {
		if ignore(i, i) {
			continue
		}
		for j, h := range s.Holes {
			p, ok := offBoundary(h, siblingRings(s, j))
			if !ok || !math.PointInPolygon(p, s.Outer) {
				bad[i] = true
				break
			}
			for k, o := range s.Holes {
				if k != j && math.PointInPolygon(p, o) {
					bad[i] = true
					break
				}
			}
		}
	}

	box := make([]bounds, len(shapes))
	for i, s := range shapes {
		box[i] = ringBounds(s.Outer)
	}
	for i := range shapes {
		for j := range shapes {
			if i == j || ignore(i, j) || !box[i].overlaps(box[j]) {
				continue
			}
			p, ok := offBoundary(shapes[j].Outer, siblingRings(shapes[i], -1))
			if !ok || inSolid(p, shapes[i]) {
				bad[i], bad[j] = true, true
			}
		}
	}
	return bad
}

func appendSegments(segs []segment, r ContourPath, shape int) []segment {
	for i, a := range r {
		b := r[(i+1)%len(r)]
		segs = append(segs, segment{
			a: a, b: b, shape: shape,
			minX: min(a.X, b.X), maxX: max(a.X, b.X),
			minY: min(a.Y, b.Y), maxY: max(a.Y, b.Y),
		})
	}
	return segs
}

// siblingRings returns the outer ring and every hole of s except hole skip.
func siblingRings(s Shape, skip int) []ContourPath {
	rings := []ContourPath{s.Outer}
	for k, h := range s.Holes {
		if k != skip {
			rings = append(rings, h)
		}
	}
	return rings
}

// inSolid reports whether p lies inside s's outer ring and outside its holes.
func inSolid(p math.Vec2, s Shape) bool {
	if !math.PointInPolygon(p, s.Outer) {
		return false
	}
	for _, h := range s.Holes {
		if math.PointInPolygon(p, h) {
			return false
		}
	}
	return true
}

// offBoundary returns a point of r that lies on none of rings. Edge midpoints
// are tried first since exact rings share vertices but never edges.
func offBoundary(r ContourPath, rings []ContourPath) (math.Vec2, bool) {
	free := func(p math.Vec2) bool {
		for _, o := range rings {
			if onRing(p, o) {
				return false
			}
		}
		return true
	}
	for i, a := range r {
		if p := a.Add(r[(i+1)%len(r)]).Scale(0.5); free(p) {
			return p, true
		}
	}
	for _, p := range r {
		if free(p) {
			return p, true
		}
	}
	return math.Vec2{}, false
}

func onRing(p math.Vec2, r ContourPath) bool {
	for i, a := range r {
		b := r[(i+1)%len(r)]
		if math.Orient(a, b, p) == 0 && onSegment(a, p, b) {
			return true
		}
	}
	return false
}

// segmentsConflict reports whether segments ab and cd meet anywhere other
// than a single shared endpoint.
func segmentsConflict(a, b, c, d math.Vec2) bool {
	if (a == c && b == d) || (a == d && b == c) {
		return true
	}
	o1 := sign(math.Orient(a, b, c))
	o2 := sign(math.Orient(a, b, d))
	o3 := sign(math.Orient(c, d, a))
	o4 := sign(math.Orient(c, d, b))
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	return (o1 == 0 && strictlyWithin(c, a, b)) ||
		(o2 == 0 && strictlyWithin(d, a, b)) ||
		(o3 == 0 && strictlyWithin(a, c, d)) ||
		(o4 == 0 && strictlyWithin(b, c, d))
}

// strictlyWithin reports whether p, collinear with ab, lies on ab but is
// not one of its endpoints.
func strictlyWithin(p, a, b math.Vec2) bool {
	return p != a && p != b && onSegment(a, p, b)
}
