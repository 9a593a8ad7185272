package terrain

import (
	gomath "math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/internal/physics"
	"github.com/Faultbox/molee/pkg/math"
)

// DebugSink receives intermediate rasters for offline inspection. Export
// failures are logged and never stop terrain construction.
type DebugSink interface {
	ExportDensityMap(name string, m *DensityMap) error
	ExportClusters(clusters []Cluster) error
}

// Options configures the raster-to-body pipeline.
type Options struct {
	MinClusterSize int
	Trace          TraceOptions
	Generator      GeneratorParams
	Strategy       string // empty selects from the seed
	Fixture        physics.FixtureParams
	Debug          DebugSink
}

// DefaultOptions returns the settings used by the game.
func DefaultOptions() Options {
	return Options{
		MinClusterSize: MinSpeckleSize,
		Trace:          DefaultTraceOptions(),
		Generator:      DefaultGeneratorParams(),
		Fixture:        physics.DefaultFixtureParams(),
	}
}

// ClusterStats summarizes what one cluster contributed.
type ClusterStats struct {
	ID        int
	Size      int
	Shapes    int
	Holes     int
	Triangles int
	Area      float64
}

// Terrain owns a density map, its triangulation and the static body built from it.
type Terrain struct {
	DensityMap     *DensityMap
	Triangles      []Triangle
	Clusters       []ClusterStats
	Strategy       Strategy
	Seed           string
	ConversionTime time.Duration

	world *physics.World
	body  physics.BodyHandle
	opts  Options
}

// New generates a density map from seed and builds the terrain body in world.
func New(world *physics.World, width, height int, seed string, opts Options) *Terrain {
	gen := NewGenerator(opts.Generator)
	if opts.Strategy != "" {
		if s, ok := ParseStrategy(opts.Strategy); ok {
			gen.ForceStrategy(s)
		} else {
			logger.Named(logger.StageGenerator).Warn("unknown strategy, selecting from seed",
				zap.String("strategy", opts.Strategy))
		}
	}
	m, strategy := gen.Generate(width, height, seed)

	t := NewFromDensityMap(world, m, opts)
	t.Strategy = strategy
	t.Seed = seed
	return t
}

// NewFromDensityMap builds the terrain body for an existing raster.
func NewFromDensityMap(world *physics.World, m *DensityMap, opts Options) *Terrain {
	t := &Terrain{
		DensityMap: m,
		world:      world,
		opts:       opts,
	}
	if opts.Debug != nil {
		if err := opts.Debug.ExportDensityMap("terrain", m); err != nil {
			logger.Warn("density map export failed", zap.Error(err))
		}
	}
	t.build()
	return t
}

func (t *Terrain) build() {
	start := time.Now()
	t.Triangles, t.Clusters = rasterToTriangles(t.DensityMap, t.opts)
	t.ConversionTime = time.Since(start)
	t.body = BuildBody(t.world, t.Triangles, t.opts.Fixture)

	logger.Info("terrain conversion finished",
		zap.Duration("elapsed", t.ConversionTime),
		zap.Int("clusters", len(t.Clusters)),
		zap.Int("triangles", len(t.Triangles)))
}

// RasterToTriangles runs clustering, tracing and triangulation over m.
func RasterToTriangles(m *DensityMap, opts Options) []Triangle {
	tris, _ := rasterToTriangles(m, opts)
	return tris
}

func rasterToTriangles(m *DensityMap, opts Options) ([]Triangle, []ClusterStats) {
	log := logger.Named(logger.StageCluster)
	clusters := ExtractClusters(m, opts.MinClusterSize)
	if opts.Debug != nil && len(clusters) > 0 {
		if err := opts.Debug.ExportClusters(clusters); err != nil {
			log.Warn("cluster export failed", zap.Error(err))
		}
	}

	// Shapes are resolved across clusters, since a simplified island can
	// cross the hole of the cluster around it.
	var traced []tracedShape
	var owner []int
	for ci, c := range clusters {
		shapes := traceShapes(c.Mask, opts.Trace)
		if len(shapes) == 0 {
			log.Warn("no paths generated for cluster", zap.Int("cluster", c.ID), zap.Int("size", c.Size))
		}
		dx, dy := float64(c.Bounds.Min.X), float64(c.Bounds.Min.Y)
		for _, s := range shapes {
			traced = append(traced, s.translate(dx, dy))
			owner = append(owner, ci)
		}
	}
	resolveCrossings(traced)

	stats := make([]ClusterStats, len(clusters))
	for i, c := range clusters {
		stats[i] = ClusterStats{ID: c.ID, Size: c.Size}
	}
	var all []Triangle
	for i, t := range traced {
		st := &stats[owner[i]]
		tris := Triangulate(t.shape.Outer, t.shape.Holes, m.Height())
		st.Shapes++
		st.Holes += len(t.shape.Holes)
		st.Triangles += len(tris)
		st.Area += TotalArea(tris)
		all = append(all, tris...)
	}

	for _, st := range stats {
		log.Debug("cluster triangulated",
			zap.Int("cluster", st.ID),
			zap.Int("size", st.Size),
			zap.Int("paths", st.Shapes+st.Holes),
			zap.Int("triangles", st.Triangles))
	}
	return all, stats
}

// Body returns the handle of the terrain's static body.
func (t *Terrain) Body() physics.BodyHandle { return t.body }

// FixtureCount returns how many fixtures the terrain body carries.
func (t *Terrain) FixtureCount() int { return t.world.FixtureCount(t.body) }

// Width returns the raster width in world units.
func (t *Terrain) Width() int { return t.DensityMap.Width() }

// Height returns the raster height in world units.
func (t *Terrain) Height() int { return t.DensityMap.Height() }

// CellAt converts a world position to the raster cell containing it.
func (t *Terrain) CellAt(p math.Vec2) (x, y int) {
	return int(gomath.Floor(p.X)), int(gomath.Floor(float64(t.Height()) - p.Y))
}

// DeformTerrain removes every solid cell whose center lies within radius of
// the world point (x, y), then rebuilds the triangulation and body from the
// whole map. It returns the number of cells removed; zero leaves the terrain untouched.
func (t *Terrain) DeformTerrain(x, y, radius float64) int {
	if radius <= 0 {
		return 0
	}
	h := float64(t.Height())
	minX, maxX := int(gomath.Floor(x-radius)), int(gomath.Ceil(x+radius))
	minY, maxY := int(gomath.Floor(h-y-radius)), int(gomath.Ceil(h-y+radius))
	r2 := radius * radius

	removed := 0
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			if !t.DensityMap.At(cx, cy) {
				continue
			}
			center := math.V2(float64(cx)+0.5, h-float64(cy)-0.5)
			d := center.Sub(math.V2(x, y))
			if d.Dot(d) <= r2 {
				t.DensityMap.Set(cx, cy, false)
				removed++
			}
		}
	}

	logger.Named(logger.StageDeform).Info("deform terrain",
		zap.Float64("x", x), zap.Float64("y", y), zap.Float64("radius", radius),
		zap.Int("removed", removed))
	if removed == 0 {
		return 0
	}

	if err := t.world.DestroyBody(t.body); err != nil {
		logger.Warn("destroying terrain body", zap.Error(err))
	}
	t.build()
	return removed
}

// IsAreaClear reports whether the world-space box centered on pos with the
// given half extents overlaps no solid cell. Cells outside the map are empty.
func (t *Terrain) IsAreaClear(pos math.Vec2, halfW, halfH float64) bool {
	h := float64(t.Height())
	minX := int(gomath.Floor(pos.X - halfW))
	maxX := int(gomath.Ceil(pos.X+halfW)) - 1
	minY := int(gomath.Floor(h - (pos.Y + halfH)))
	maxY := int(gomath.Ceil(h-(pos.Y-halfH))) - 1

	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			if t.DensityMap.At(cx, cy) {
				return false
			}
		}
	}
	return true
}

// FindSafeSpawnLocation returns pos if the box fits there, otherwise the
// lowest clear position straight above it.
func (t *Terrain) FindSafeSpawnLocation(pos math.Vec2, halfW, halfH float64) math.Vec2 {
	p := pos
	top := float64(t.Height()) + halfH
	for !t.IsAreaClear(p, halfW, halfH) && p.Y < top {
		p.Y++
	}
	if p != pos {
		logger.Named(logger.StageSpawn).Debug("spawn moved up",
			zap.Float64("from", pos.Y), zap.Float64("to", p.Y))
	}
	return p
}

// Destroy releases the terrain body from the world.
func (t *Terrain) Destroy() {
	if err := t.world.DestroyBody(t.body); err != nil {
		logger.Warn("destroying terrain body", zap.Error(err))
	}
}
