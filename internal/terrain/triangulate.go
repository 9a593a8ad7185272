package terrain

import (
	gomath "math"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/pkg/math"
)

// Triangulate flips outer and holes from image space into world space
// (world_y = rasterHeight - image_y) and ear-clips the outer ring with every
// hole subtracted. Degenerate triangles are logged and dropped.
func Triangulate(outer ContourPath, holes []ContourPath, rasterHeight int) []Triangle {
	log := logger.Named(logger.StageTriangulate)
	if len(outer) < 3 {
		log.Warn("path too short to triangulate", zap.Int("points", len(outer)))
		return nil
	}

	h := float64(rasterHeight)
	toWorld := func(p ContourPath) []math.Vec2 {
		out := make([]math.Vec2, len(p))
		for i, v := range p {
			out[i] = math.V2(v.X, h-v.Y)
		}
		return out
	}

	worldHoles := make([][]math.Vec2, 0, len(holes))
	for _, hole := range holes {
		if len(hole) < 3 {
			log.Debug("skipping short hole", zap.Int("points", len(hole)))
			continue
		}
		worldHoles = append(worldHoles, toWorld(hole))
	}

	raw := earcut(toWorld(outer), worldHoles)
	if len(raw) == 0 {
		log.Warn("ear clipping produced no triangles",
			zap.Int("points", len(outer)),
			zap.Int("holes", len(worldHoles)))
		return nil
	}

	tris := make([]Triangle, 0, len(raw))
	for _, t := range raw {
		if t.IsDegenerate() {
			log.Warn("discarding degenerate triangle",
				zap.Float64s("a", []float64{t[0].X, t[0].Y}),
				zap.Float64s("b", []float64{t[1].X, t[1].Y}),
				zap.Float64s("c", []float64{t[2].X, t[2].Y}))
			continue
		}
		if t.SignedArea() < 0 {
			t[1], t[2] = t[2], t[1]
		}
		tris = append(tris, t)
	}
	return tris
}

// node is a vertex in a circular doubly linked polygon ring.
// i identifies the source vertex; bridge copies share it.
type node struct {
	i          int
	p          math.Vec2
	prev, next *node
	steiner    bool
}

// earcut triangulates a polygon given in a y-up frame. The outer ring is
// relinked counter-clockwise and holes clockwise before bridging.
func earcut(outer []math.Vec2, holes [][]math.Vec2) []Triangle {
	outerNode := linkRing(outer, 0, true)
	if outerNode == nil || outerNode.next == outerNode.prev {
		return nil
	}
	if len(holes) > 0 {
		outerNode = eliminateHoles(holes, len(outer), outerNode)
	}

	var out []Triangle
	earcutLinked(outerNode, &out, 0)
	return out
}

// linkRing builds a ring in the requested winding. Vertex ids start at base.
func linkRing(pts []math.Vec2, base int, ccw bool) *node {
	var last *node
	if ccw == (math.SignedArea(pts) > 0) {
		for i, p := range pts {
			last = insertNode(base+i, p, last)
		}
	} else {
		for i := len(pts) - 1; i >= 0; i-- {
			last = insertNode(base+i, pts[i], last)
		}
	}
	if last != nil && last.p == last.next.p {
		removeNode(last)
		last = last.next
	}
	return last
}

func earcutLinked(ear *node, out *[]Triangle, pass int) {
	if ear == nil {
		return
	}
	stop := ear
	for ear.prev != ear.next {
		prev, next := ear.prev, ear.next
		if isEar(ear) {
			*out = append(*out, Triangle{prev.p, ear.p, next.p})
			removeNode(ear)
			ear = next.next
			stop = next.next
			continue
		}
		ear = next

		if ear == stop {
			switch pass {
			case 0:
				earcutLinked(filterPoints(ear, nil), out, 1)
			case 1:
				ear = cureLocalIntersections(filterPoints(ear, nil), out)
				earcutLinked(ear, out, 2)
			case 2:
				splitEarcut(ear, out)
			}
			return
		}
	}
}

func isEar(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if orient(a, b, c) <= 0 {
		return false
	}
	for p := ear.next.next; p != ear.prev; p = p.next {
		if pointInTriangle(a.p, b.p, c.p, p.p) && orient(p.prev, p, p.next) <= 0 {
			return false
		}
	}
	return true
}

// filterPoints removes duplicate and collinear vertices between start and end.
func filterPoints(start, end *node) *node {
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if !p.steiner && (p.p == p.next.p || orient(p.prev, p, p.next) == 0) {
			removeNode(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

// cureLocalIntersections clips small self-intersections left by simplification.
func cureLocalIntersections(start *node, out *[]Triangle) *node {
	p := start
	for {
		a, b := p.prev, p.next.next
		if a.p != b.p && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			*out = append(*out, Triangle{a.p, p.p, b.p})
			removeNode(p)
			removeNode(p.next)
			p = b
			start = b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filterPoints(p, nil)
}

// splitEarcut cuts a stuck polygon along a valid diagonal and recurses on both halves.
func splitEarcut(start *node, out *[]Triangle) {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				c := splitPolygon(a, b)
				a = filterPoints(a, a.next)
				c = filterPoints(c, c.next)
				earcutLinked(a, out, 0)
				earcutLinked(c, out, 0)
				return
			}
		}
		a = a.next
		if a == start {
			return
		}
	}
}

// eliminateHoles bridges every hole into the outer ring, leftmost hole first.
func eliminateHoles(holes [][]math.Vec2, base int, outerNode *node) *node {
	queue := make([]*node, 0, len(holes))
	for _, h := range holes {
		list := linkRing(h, base, false)
		base += len(h)
		if list == nil {
			continue
		}
		if list == list.next {
			list.steiner = true
		}
		queue = append(queue, leftmost(list))
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].p.X < queue[j].p.X })

	for _, h := range queue {
		outerNode = eliminateHole(h, outerNode)
		outerNode = filterPoints(outerNode, outerNode.next)
	}
	return outerNode
}

func eliminateHole(hole, outerNode *node) *node {
	bridge := findHoleBridge(hole, outerNode)
	if bridge == nil {
		return outerNode
	}
	bridgeReverse := splitPolygon(bridge, hole)
	filtered := filterPoints(bridge, bridge.next)
	filterPoints(bridgeReverse, bridgeReverse.next)
	if outerNode == bridge {
		return filtered
	}
	return outerNode
}

// findHoleBridge finds an outer vertex visible from the hole's leftmost vertex
// by casting a ray to the left and picking the closest intersected edge.
func findHoleBridge(hole, outerNode *node) *node {
	hx, hy := hole.p.X, hole.p.Y
	qx := gomath.Inf(-1)
	var m *node

	p := outerNode
	for {
		if hy <= p.p.Y && hy >= p.next.p.Y && p.next.p.Y != p.p.Y {
			x := p.p.X + (hy-p.p.Y)*(p.next.p.X-p.p.X)/(p.next.p.Y-p.p.Y)
			if x <= hx && x > qx {
				qx = x
				if x == hx {
					if hy == p.p.Y {
						return p
					}
					if hy == p.next.p.Y {
						return p.next
					}
				}
				if p.p.X < p.next.p.X {
					m = p
				} else {
					m = p.next
				}
			}
		}
		p = p.next
		if p == outerNode {
			break
		}
	}
	if m == nil {
		return nil
	}
	if hx == qx {
		return m
	}

	// Look for a closer reflex vertex inside the triangle (hole, ray hit, m).
	stop := m
	mx, my := m.p.X, m.p.Y
	tanMin := gomath.Inf(1)
	p = m
	for {
		if hx >= p.p.X && p.p.X >= mx && hx != p.p.X {
			var a, c math.Vec2
			if hy < my {
				a, c = math.V2(hx, hy), math.V2(qx, hy)
			} else {
				a, c = math.V2(qx, hy), math.V2(hx, hy)
			}
			if pointInTriangle(a, math.V2(mx, my), c, p.p) {
				tan := gomath.Abs(hy-p.p.Y) / (hx - p.p.X)
				if locallyInside(p, hole) &&
					(tan < tanMin || (tan == tanMin && (p.p.X > m.p.X || (p.p.X == m.p.X && sectorContainsSector(m, p))))) {
					m = p
					tanMin = tan
				}
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

func sectorContainsSector(m, p *node) bool {
	return orient(m.prev, m, p.prev) > 0 && orient(p.next, m, m.next) > 0
}

func leftmost(start *node) *node {
	best := start
	for p := start.next; p != start; p = p.next {
		if p.p.X < best.p.X || (p.p.X == best.p.X && p.p.Y < best.p.Y) {
			best = p
		}
	}
	return best
}

func isValidDiagonal(a, b *node) bool {
	if a.next.i == b.i || a.prev.i == b.i {
		return false
	}
	if intersectsPolygon(a, b) {
		return false
	}
	if locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
		(orient(a.prev, a, b.prev) != 0 || orient(a, b.prev, b) != 0) {
		return true
	}
	return a.p == b.p && orient(a.prev, a, a.next) < 0 && orient(b.prev, b, b.next) < 0
}

// orient is positive when a, b, c turn counter-clockwise.
func orient(a, b, c *node) float64 {
	return math.Orient(a.p, b.p, c.p)
}

// pointInTriangle reports whether p lies inside or on the counter-clockwise triangle abc.
func pointInTriangle(a, b, c, p math.Vec2) bool {
	return (c.X-p.X)*(a.Y-p.Y) >= (a.X-p.X)*(c.Y-p.Y) &&
		(a.X-p.X)*(b.Y-p.Y) >= (b.X-p.X)*(a.Y-p.Y) &&
		(b.X-p.X)*(c.Y-p.Y) >= (c.X-p.X)*(b.Y-p.Y)
}

func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(orient(p1, q1, p2))
	o2 := sign(orient(p1, q1, q2))
	o3 := sign(orient(p2, q2, p1))
	o4 := sign(orient(p2, q2, q1))

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1.p, p2.p, q1.p) {
		return true
	}
	if o2 == 0 && onSegment(p1.p, q2.p, q1.p) {
		return true
	}
	if o3 == 0 && onSegment(p2.p, p1.p, q2.p) {
		return true
	}
	if o4 == 0 && onSegment(p2.p, q1.p, q2.p) {
		return true
	}
	return false
}

// onSegment reports whether q lies in the bounding box of segment pr.
func onSegment(p, q, r math.Vec2) bool {
	return q.X <= gomath.Max(p.X, r.X) && q.X >= gomath.Min(p.X, r.X) &&
		q.Y <= gomath.Max(p.Y, r.Y) && q.Y >= gomath.Min(p.Y, r.Y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func intersectsPolygon(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i &&
			intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			return false
		}
	}
}

// locallyInside reports whether diagonal ab starts inside the polygon at a.
func locallyInside(a, b *node) bool {
	if orient(a.prev, a, a.next) > 0 {
		return orient(a, b, a.next) <= 0 && orient(a, a.prev, b) <= 0
	}
	return orient(a, b, a.prev) > 0 || orient(a, a.next, b) > 0
}

// middleInside reports whether the midpoint of ab is inside the polygon.
func middleInside(a, b *node) bool {
	inside := false
	px, py := (a.p.X+b.p.X)/2, (a.p.Y+b.p.Y)/2
	p := a
	for {
		if (p.p.Y > py) != (p.next.p.Y > py) && p.next.p.Y != p.p.Y &&
			px < (p.next.p.X-p.p.X)*(py-p.p.Y)/(p.next.p.Y-p.p.Y)+p.p.X {
			inside = !inside
		}
		p = p.next
		if p == a {
			return inside
		}
	}
}

// splitPolygon links a to b with a two-way bridge and returns the copy of b
// that starts the second ring.
func splitPolygon(a, b *node) *node {
	a2 := &node{i: a.i, p: a.p}
	b2 := &node{i: b.i, p: b.p}
	an, bp := a.next, b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp

	return b2
}

func insertNode(i int, p math.Vec2, last *node) *node {
	n := &node{i: i, p: p}
	if last == nil {
		n.prev = n
		n.next = n
	} else {
		n.next = last.next
		n.prev = last
		last.next.prev = n
		last.next = n
	}
	return n
}

func removeNode(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next
}
