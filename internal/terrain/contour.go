package terrain

import (
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/pkg/math"
)

// ContourPath is a closed ring of cell-corner points in image space (y down).
// Outer rings run clockwise on screen and have positive shoelace area; holes
// run the other way.
type ContourPath []math.Vec2

// Area returns the ring's signed shoelace area in image space.
func (p ContourPath) Area() float64 {
	return math.SignedArea(p)
}

// IsHole reports whether the ring winds as a hole.
func (p ContourPath) IsHole() bool {
	return p.Area() < 0
}

// Translate returns a copy shifted by (dx, dy).
func (p ContourPath) Translate(dx, dy float64) ContourPath {
	out := make(ContourPath, len(p))
	d := math.V2(dx, dy)
	for i, v := range p {
		out[i] = v.Add(d)
	}
	return out
}

// Shape is one outer ring and the holes it encloses.
type Shape struct {
	Outer ContourPath
	Holes []ContourPath
}

// Translate returns a copy of the shape shifted by (dx, dy).
func (s Shape) Translate(dx, dy float64) Shape {
	out := Shape{Outer: s.Outer.Translate(dx, dy)}
	for _, h := range s.Holes {
		out.Holes = append(out.Holes, h.Translate(dx, dy))
	}
	return out
}

// SimplifyMode selects the path simplification pass.
type SimplifyMode int

// Simplification modes.
const (
	// SimplifyNone only removes collinear points; the ring stays exact.
	SimplifyNone SimplifyMode = iota
	// SimplifyPolygon also collapses staircases within Tolerance cells.
	SimplifyPolygon
)

// String returns the mode's config name.
func (m SimplifyMode) String() string {
	switch m {
	case SimplifyNone:
		return "none"
	case SimplifyPolygon:
		return "polygon"
	default:
		return fmt.Sprintf("SimplifyMode(%d)", int(m))
	}
}

// ParseSimplifyMode maps a config name to a SimplifyMode.
func ParseSimplifyMode(name string) (SimplifyMode, bool) {
	switch name {
	case "none", "":
		return SimplifyNone, true
	case "polygon":
		return SimplifyPolygon, true
	}
	return 0, false
}

// TraceOptions controls contour extraction.
type TraceOptions struct {
	Mode      SimplifyMode
	Tolerance float64
}

// DefaultTraceOptions returns polygon simplification at one cell.
func DefaultTraceOptions() TraceOptions {
	return TraceOptions{Mode: SimplifyPolygon, Tolerance: 1}
}

// Edge directions in image space: right, down, left, up.
const (
	dirRight = iota
	dirDown
	dirLeft
	dirUp
)

var dirStep = [4]image.Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// TraceShapes extracts the boundary rings of every solid region in raster.
// Shapes are ordered by the row-major position of their first boundary edge.
// A simplified shape whose rings would cross is returned with its exact rings.
func TraceShapes(raster *DensityMap, opts TraceOptions) []Shape {
	traced := traceShapes(raster, opts)
	if len(traced) == 0 {
		return nil
	}
	resolveCrossings(traced)
	shapes := make([]Shape, len(traced))
	for i, t := range traced {
		shapes[i] = t.shape
	}
	return shapes
}

// tracedShape pairs a simplified shape with the exact rings it came from.
type tracedShape struct {
	shape      Shape
	exact      Shape
	simplified bool
}

func (t tracedShape) translate(dx, dy float64) tracedShape {
	return tracedShape{
		shape:      t.shape.Translate(dx, dy),
		exact:      t.exact.Translate(dx, dy),
		simplified: t.simplified,
	}
}

// traceShapes groups the raster's rings into shapes and simplifies each one.
// Crossings between rings are left for resolveCrossings.
func traceShapes(raster *DensityMap, opts TraceOptions) []tracedShape {
	rings := traceRings(raster)

	var outers, holes []ContourPath
	for _, r := range rings {
		if r.IsHole() {
			holes = append(holes, r)
		} else {
			outers = append(outers, r)
		}
	}
	if len(outers) == 0 {
		return nil
	}

	shapes := make([]Shape, len(outers))
	for i, o := range outers {
		shapes[i].Outer = o
	}
	for _, h := range holes {
		sample := holeSample(h)
		best := -1
		for i, o := range outers {
			if !math.PointInPolygon(sample, o) {
				continue
			}
			if best < 0 || o.Area() < outers[best].Area() {
				best = i
			}
		}
		if best < 0 {
			logger.Named(logger.StageContour).Warn("hole outside every outer ring",
				zap.Int("points", len(h)))
			continue
		}
		shapes[best].Holes = append(shapes[best].Holes, h)
	}

	traced := make([]tracedShape, len(shapes))
	for i, sh := range shapes {
		traced[i] = simplifyShape(sh, opts)
	}
	return traced
}

// Trace returns the outer ring of every shape followed by all holes.
func Trace(raster *DensityMap, opts TraceOptions) []ContourPath {
	shapes := TraceShapes(raster, opts)
	var paths []ContourPath
	for _, s := range shapes {
		paths = append(paths, s.Outer)
	}
	for _, s := range shapes {
		paths = append(paths, s.Holes...)
	}
	return paths
}

// traceRings follows cell edges with solid on the right. At saddle vertices
// the walk turns toward the solid side so diagonal contacts never join.
// Rings that revisit a vertex are split there, so every ring is simple.
func traceRings(raster *DensityMap) []ContourPath {
	w, h := raster.Width(), raster.Height()
	vw := w + 1
	out := make([]uint8, vw*(h+1))
	addEdge := func(x, y, dir int) { out[y*vw+x] |= 1 << dir }

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !raster.At(x, y) {
				continue
			}
			if !raster.At(x, y-1) {
				addEdge(x, y, dirRight)
			}
			if !raster.At(x+1, y) {
				addEdge(x+1, y, dirDown)
			}
			if !raster.At(x, y+1) {
				addEdge(x+1, y+1, dirLeft)
			}
			if !raster.At(x-1, y) {
				addEdge(x, y+1, dirUp)
			}
		}
	}

	var rings []ContourPath
	for start := range out {
		for out[start] != 0 {
			dir := firstDir(out[start])
			walk := walkRing(out, vw, start, dir)
			rings = append(rings, splitRing(walk)...)
		}
	}
	return rings
}

func firstDir(mask uint8) int {
	for d := range 4 {
		if mask&(1<<d) != 0 {
			return d
		}
	}
	return -1
}

// walkRing consumes edges from start until it returns to start.
func walkRing(out []uint8, vw, start, dir int) []image.Point {
	var pts []image.Point
	v := start
	for {
		out[v] &^= 1 << dir
		pts = append(pts, image.Pt(v%vw, v/vw))
		step := dirStep[dir]
		v += step.Y*vw + step.X
		if v == start {
			return pts
		}
		right, left := (dir+1)%4, (dir+3)%4
		switch {
		case out[v]&(1<<right) != 0:
			dir = right
		case out[v]&(1<<dir) != 0:
		case out[v]&(1<<left) != 0:
			dir = left
		default:
			// In-degree equals out-degree at every vertex, so this is unreachable.
			return pts
		}
	}
}

// splitRing cuts a closed walk at repeated vertices into simple rings.
func splitRing(walk []image.Point) []ContourPath {
	var rings []ContourPath
	var stack []image.Point
	seen := make(map[image.Point]int, len(walk))
	for _, p := range walk {
		if at, ok := seen[p]; ok {
			loop := stack[at:]
			rings = appendRing(rings, loop)
			for _, q := range loop {
				delete(seen, q)
			}
			stack = stack[:at]
		}
		seen[p] = len(stack)
		stack = append(stack, p)
	}
	return appendRing(rings, stack)
}

func appendRing(rings []ContourPath, pts []image.Point) []ContourPath {
	if len(pts) < 3 {
		return rings
	}
	ring := make(ContourPath, len(pts))
	for i, p := range pts {
		ring[i] = math.V2(float64(p.X), float64(p.Y))
	}
	return append(rings, ring)
}

// holeSample returns the center of the empty cell bordering the hole's first edge.
func holeSample(h ContourPath) math.Vec2 {
	a, b := h[0], h[1]
	d := b.Sub(a).Normalize()
	left := math.V2(d.Y, -d.X)
	return a.Add(b).Scale(0.5).Add(left.Scale(0.5))
}

// simplifyShape strips collinear points from every ring and, in polygon
// mode, simplifies each ring on its own.
func simplifyShape(sh Shape, opts TraceOptions) tracedShape {
	exact := Shape{Outer: removeCollinear(sh.Outer)}
	for _, h := range sh.Holes {
		exact.Holes = append(exact.Holes, removeCollinear(h))
	}
	t := tracedShape{shape: exact, exact: exact}
	if opts.Mode != SimplifyPolygon || opts.Tolerance <= 0 {
		return t
	}

	t.shape = Shape{Outer: simplifyPath(exact.Outer, opts.Tolerance)}
	for _, h := range exact.Holes {
		t.shape.Holes = append(t.shape.Holes, simplifyPath(h, opts.Tolerance))
	}
	t.simplified = true
	return t
}

func simplifyPath(p ContourPath, tol float64) ContourPath {
	s := simplifyRing(p, tol)
	if len(s) < 3 || (s.Area() > 0) != (p.Area() > 0) {
		return p
	}
	return s
}

// removeCollinear drops duplicate points and points on a straight run.
func removeCollinear(p ContourPath) ContourPath {
	out := make(ContourPath, 0, len(p))
	for i, v := range p {
		prev := p[(i+len(p)-1)%len(p)]
		next := p[(i+1)%len(p)]
		if v == prev || math.Orient(prev, v, next) == 0 {
			continue
		}
		out = append(out, v)
	}
	if len(out) < 3 {
		return p
	}
	return out
}

// simplifyRing is a closed-ring Douglas-Peucker pass. It seeds the result with
// the lower-left and upper-right vertices, then keeps inserting the farthest
// raw vertex of any segment that deviates by more than tol.
func simplifyRing(p ContourPath, tol float64) ContourPath {
	n := len(p)
	if n <= 4 {
		return p
	}
	ll, ur := 0, 0
	for i, v := range p {
		if v.X < p[ll].X || (v.X == p[ll].X && v.Y < p[ll].Y) {
			ll = i
		}
		if v.X > p[ur].X || (v.X == p[ur].X && v.Y > p[ur].Y) {
			ur = i
		}
	}
	if ll == ur {
		return p
	}

	tolSq := tol * tol
	keep := []int{ll, ur}
	for i := 0; i < len(keep); {
		ai := keep[i]
		bi := keep[(i+1)%len(keep)]
		a, b := p[ai], p[bi]

		maxD, maxI := -1.0, -1
		for ci := (ai + 1) % n; ci != bi; ci = (ci + 1) % n {
			if d := math.DistanceToSegmentSq(p[ci], a, b); d > maxD {
				maxD, maxI = d, ci
			}
		}
		if maxI >= 0 && maxD > tolSq {
			keep = append(keep, 0)
			copy(keep[i+2:], keep[i+1:])
			keep[i+1] = maxI
			continue
		}
		i++
	}

	// keep is cyclically increasing from ll; sorting rotates it to raw order.
	sort.SliceStable(keep, func(x, y int) bool { return keep[x] < keep[y] })
	out := make(ContourPath, len(keep))
	for i, idx := range keep {
		out[i] = p[idx]
	}
	return out
}
