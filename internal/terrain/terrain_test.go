package terrain

import (
	"errors"
	"image"
	gomath "math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/Faultbox/molee/internal/physics"
	"github.com/Faultbox/molee/pkg/math"
)

func newWorld() *physics.World {
	return physics.NewWorld(math.V2(0, -98))
}

func exactOptions() Options {
	opts := DefaultOptions()
	opts.Trace = TraceOptions{Mode: SimplifyNone}
	return opts
}

func TestPipelineEmptyMap(t *testing.T) {
	w := newWorld()
	tr := NewFromDensityMap(w, NewDensityMap(100, 100), DefaultOptions())
	if len(tr.Clusters) != 0 || len(tr.Triangles) != 0 {
		t.Errorf("expected no clusters or triangles, got %d and %d", len(tr.Clusters), len(tr.Triangles))
	}
	if got := tr.FixtureCount(); got != 0 {
		t.Errorf("FixtureCount = %d, want 0", got)
	}
}

func TestPipelineFullMap(t *testing.T) {
	m := NewDensityMap(100, 100)
	m.Fill(true)
	tr := NewFromDensityMap(newWorld(), m, DefaultOptions())

	if len(tr.Clusters) != 1 || tr.Clusters[0].Size != 10000 {
		t.Fatalf("expected one cluster of 10000 cells, got %+v", tr.Clusters)
	}
	if len(tr.Triangles) < 2 {
		t.Fatalf("expected at least 2 triangles, got %d", len(tr.Triangles))
	}
	if got := TotalArea(tr.Triangles); gomath.Abs(got-10000) > 1e-6 {
		t.Errorf("area = %v, want 10000", got)
	}
	if got := tr.FixtureCount(); got != len(tr.Triangles) {
		t.Errorf("FixtureCount = %d, want %d", got, len(tr.Triangles))
	}

	polys, err := tr.world.FixturePolygons(tr.Body())
	if err != nil {
		t.Fatalf("FixturePolygons error: %v", err)
	}
	fixtureArea := 0.0
	for _, p := range polys {
		fixtureArea += math.SignedArea(p)
	}
	if gomath.Abs(fixtureArea-10000) > 1e-3 {
		t.Errorf("fixture area = %v, want 10000", fixtureArea)
	}
}

func TestPipelineTwoSquares(t *testing.T) {
	m := NewDensityMap(30, 20)
	m.FillRect(image.Rect(2, 2, 7, 7), true)
	m.FillRect(image.Rect(20, 10, 25, 15), true)

	tr := NewFromDensityMap(newWorld(), m, DefaultOptions())
	if len(tr.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(tr.Clusters))
	}
	for _, c := range tr.Clusters {
		if c.Size != 25 {
			t.Errorf("cluster %d size = %d, want 25", c.ID, c.Size)
		}
		if gomath.Abs(c.Area-25) > 1e-9 {
			t.Errorf("cluster %d area = %v, want 25", c.ID, c.Area)
		}
	}

	// World boxes: x 2..7, y 13..18 and x 20..25, y 5..10.
	for _, tri := range tr.Triangles {
		c := tri.Centroid()
		inFirst := c.X > 2 && c.X < 7 && c.Y > 13 && c.Y < 18
		inSecond := c.X > 20 && c.X < 25 && c.Y > 5 && c.Y < 10
		if inFirst == inSecond {
			t.Errorf("triangle %v belongs to neither square", tri)
		}
	}
}

func TestPipelineSpeckleDropped(t *testing.T) {
	m := NewDensityMap(20, 20)
	m.FillRect(image.Rect(5, 5, 8, 8), true)
	tr := NewFromDensityMap(newWorld(), m, DefaultOptions())
	if len(tr.Triangles) != 0 || tr.FixtureCount() != 0 {
		t.Errorf("3x3 speckle should yield nothing, got %d triangles, %d fixtures",
			len(tr.Triangles), tr.FixtureCount())
	}
}

func TestNewDeterministic(t *testing.T) {
	a := New(newWorld(), 160, 120, "whacka-molee_match", DefaultOptions())
	b := New(newWorld(), 160, 120, "whacka-molee_match", DefaultOptions())
	if !a.DensityMap.Equal(b.DensityMap) {
		t.Fatal("same seed produced different maps")
	}
	if len(a.Triangles) != len(b.Triangles) {
		t.Errorf("triangle counts differ: %d vs %d", len(a.Triangles), len(b.Triangles))
	}
	if a.Strategy != StrategyForSeed(SeedFromString("whacka-molee_match")) {
		t.Errorf("strategy = %v, want the seed's choice", a.Strategy)
	}
}

func keptArea(m *DensityMap, minSize int) int {
	total := 0
	for _, c := range ExtractClusters(m, minSize) {
		total += c.Size
	}
	return total
}

func TestAreaConservation(t *testing.T) {
	for _, s := range []Strategy{StrategyHilly, StrategySwissCheese} {
		t.Run(s.String(), func(t *testing.T) {
			gen := NewGenerator(DefaultGeneratorParams())
			gen.ForceStrategy(s)
			m, _ := gen.Generate(256, 192, "area")
			want := float64(keptArea(m, MinSpeckleSize))

			got := TotalArea(RasterToTriangles(m, exactOptions()))
			if gomath.Abs(got-want) > want*0.01 {
				t.Errorf("exact tracing area = %v, want %v within 1%%", got, want)
			}
		})
	}
}

func TestAreaConservationSimplified(t *testing.T) {
	gen := NewGenerator(DefaultGeneratorParams())
	gen.ForceStrategy(StrategyHilly)
	m, _ := gen.Generate(256, 192, "area")
	want := float64(keptArea(m, MinSpeckleSize))

	got := TotalArea(RasterToTriangles(m, DefaultOptions()))
	if gomath.Abs(got-want) > want*0.05 {
		t.Errorf("simplified area = %v, want %v within 5%%", got, want)
	}
}

// overlappingSamples counts half-cell sample points strictly inside more
// than one triangle.
func overlappingSamples(tris []Triangle, w, h int) int {
	cover := make([]uint8, 4*w*h)
	overlaps := 0
	for _, tri := range tris {
		minX := gomath.Min(tri[0].X, gomath.Min(tri[1].X, tri[2].X))
		maxX := gomath.Max(tri[0].X, gomath.Max(tri[1].X, tri[2].X))
		minY := gomath.Min(tri[0].Y, gomath.Min(tri[1].Y, tri[2].Y))
		maxY := gomath.Max(tri[0].Y, gomath.Max(tri[1].Y, tri[2].Y))
		for sy := max(0, int(minY*2)); sy < min(2*h, int(maxY*2)+1); sy++ {
			for sx := max(0, int(minX*2)); sx < min(2*w, int(maxX*2)+1); sx++ {
				p := math.V2(float64(sx)/2+0.25, float64(sy)/2+0.25)
				if math.Orient(tri[0], tri[1], p) <= 0 ||
					math.Orient(tri[1], tri[2], p) <= 0 ||
					math.Orient(tri[2], tri[0], p) <= 0 {
					continue
				}
				if cover[sy*2*w+sx]++; cover[sy*2*w+sx] == 2 {
					overlaps++
				}
			}
		}
	}
	return overlaps
}

func TestTrianglesDoNotOverlap(t *testing.T) {
	rng := rand.New(rand.NewPCG(64, 2000))
	for i := range 2000 {
		m := randomRaster(rng)
		for _, opts := range []Options{DefaultOptions(), exactOptions()} {
			tris := RasterToTriangles(m, opts)
			if n := overlappingSamples(tris, m.Width(), m.Height()); n > 0 {
				t.Fatalf("raster %d (%dx%d, %v): %d samples covered twice",
					i, m.Width(), m.Height(), opts.Trace.Mode, n)
			}
		}
	}

	for _, s := range []Strategy{StrategyHilly, StrategySwissCheese} {
		gen := NewGenerator(DefaultGeneratorParams())
		gen.ForceStrategy(s)
		m, _ := gen.Generate(256, 192, "overlap")
		tris := RasterToTriangles(m, DefaultOptions())
		if n := overlappingSamples(tris, m.Width(), m.Height()); n > 0 {
			t.Errorf("%v map: %d samples covered twice", s, n)
		}
	}
}

func TestTrianglesValidAndInBounds(t *testing.T) {
	tr := New(newWorld(), 200, 150, "bounds", DefaultOptions())
	for i, tri := range tr.Triangles {
		if tri.IsDegenerate() || tri.SignedArea() <= 0 {
			t.Fatalf("triangle %d invalid: %v", i, tri)
		}
		for _, v := range tri {
			if v.X < 0 || v.X > 200 || v.Y < 0 || v.Y > 150 {
				t.Fatalf("triangle %d vertex %v outside the map", i, v)
			}
		}
	}
	if got := tr.FixtureCount(); got > len(tr.Triangles) {
		t.Errorf("FixtureCount %d exceeds triangle count %d", got, len(tr.Triangles))
	}
}

func TestDeformTerrain(t *testing.T) {
	w := newWorld()
	m := NewDensityMap(60, 40)
	m.FillRect(image.Rect(0, 20, 60, 40), true)
	tr := NewFromDensityMap(w, m, exactOptions())
	before := tr.DensityMap.Count()
	oldBody := tr.Body()

	removed := tr.DeformTerrain(30, 20, 5)
	if removed == 0 {
		t.Fatal("expected cells to be removed")
	}
	if got := tr.DensityMap.Count(); got != before-removed {
		t.Errorf("count = %d, want %d", got, before-removed)
	}
	if tr.Body() == oldBody {
		t.Error("terrain body should be rebuilt")
	}
	if got := w.BodyCount(); got != 1 {
		t.Errorf("BodyCount = %d, want 1 after rebuild", got)
	}
	if got := TotalArea(tr.Triangles); gomath.Abs(got-float64(tr.DensityMap.Count())) > 1e-6 {
		t.Errorf("rebuilt area = %v, want %d", got, tr.DensityMap.Count())
	}
	if x, y := tr.CellAt(math.V2(30.2, 19.7)); tr.DensityMap.At(x, y) {
		t.Errorf("cell (%d,%d) at the crater center is still solid", x, y)
	}

	body := tr.Body()
	if got := tr.DeformTerrain(30, 100, 5); got != 0 {
		t.Errorf("deform outside the map removed %d cells", got)
	}
	if tr.Body() != body {
		t.Error("no-op deform must not rebuild the body")
	}
}

func TestIsAreaClear(t *testing.T) {
	m := NewDensityMap(20, 20)
	m.FillRect(image.Rect(0, 10, 20, 20), true) // world y 0..10 is ground
	tr := NewFromDensityMap(newWorld(), m, DefaultOptions())

	tests := []struct {
		pos   math.Vec2
		clear bool
	}{
		{math.V2(10, 15), true},
		{math.V2(10, 11), true},
		{math.V2(10, 10.5), false},
		{math.V2(10, 5), false},
		{math.V2(10, 30), true},
		{math.V2(-10, 5), true},
	}
	for _, tt := range tests {
		if got := tr.IsAreaClear(tt.pos, 1, 1); got != tt.clear {
			t.Errorf("IsAreaClear(%v) = %v, want %v", tt.pos, got, tt.clear)
		}
	}
}

func TestFindSafeSpawnLocation(t *testing.T) {
	m := NewDensityMap(20, 20)
	m.FillRect(image.Rect(0, 10, 20, 20), true)
	tr := NewFromDensityMap(newWorld(), m, DefaultOptions())

	if got := tr.FindSafeSpawnLocation(math.V2(10, 5), 1, 1); got != math.V2(10, 11) {
		t.Errorf("spawn = %v, want (10, 11)", got)
	}
	if got := tr.FindSafeSpawnLocation(math.V2(10, 15), 1, 1); got != math.V2(10, 15) {
		t.Errorf("clear spawn moved to %v", got)
	}
}

func TestDestroy(t *testing.T) {
	w := newWorld()
	m := NewDensityMap(20, 20)
	m.Fill(true)
	tr := NewFromDensityMap(w, m, DefaultOptions())
	tr.Destroy()
	if got := w.BodyCount(); got != 0 {
		t.Errorf("BodyCount = %d after Destroy, want 0", got)
	}
}

type recordingSink struct {
	mu       sync.Mutex
	maps     []string
	clusters int
	fail     bool
}

func (s *recordingSink) ExportDensityMap(name string, _ *DensityMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps = append(s.maps, name)
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *recordingSink) ExportClusters(clusters []Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters += len(clusters)
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func TestDebugSink(t *testing.T) {
	for _, fail := range []bool{false, true} {
		sink := &recordingSink{fail: fail}
		opts := DefaultOptions()
		opts.Debug = sink

		m := NewDensityMap(30, 20)
		m.FillRect(image.Rect(2, 2, 7, 7), true)
		m.FillRect(image.Rect(20, 10, 25, 15), true)
		tr := NewFromDensityMap(newWorld(), m, opts)

		if len(sink.maps) != 1 || sink.maps[0] != "terrain" {
			t.Errorf("fail=%v: exported maps = %v, want [terrain]", fail, sink.maps)
		}
		if sink.clusters != 2 {
			t.Errorf("fail=%v: exported %d clusters, want 2", fail, sink.clusters)
		}
		if len(tr.Triangles) == 0 {
			t.Errorf("fail=%v: export errors must not stop the pipeline", fail)
		}
	}
}
