package terrain

import (
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
)

// MinSpeckleSize is the default speckle filter: clusters with at most this
// many cells are discarded.
const MinSpeckleSize = 10

// Cluster is a maximal 4-connected set of solid cells.
type Cluster struct {
	ID     int
	Size   int
	Bounds image.Rectangle // in parent map coordinates
	Mask   *DensityMap     // Bounds-sized; only this cluster's cells are solid
}

// Contains reports whether parent-map cell (x, y) belongs to the cluster.
func (c *Cluster) Contains(x, y int) bool {
	return c.Mask.At(x-c.Bounds.Min.X, y-c.Bounds.Min.Y)
}

// Cells returns the parent-map coordinates of every cell in row-major order.
func (c *Cluster) Cells() []image.Point {
	out := make([]image.Point, 0, c.Size)
	for y := 0; y < c.Mask.Height(); y++ {
		for x := 0; x < c.Mask.Width(); x++ {
			if c.Mask.At(x, y) {
				out = append(out, image.Pt(x+c.Bounds.Min.X, y+c.Bounds.Min.Y))
			}
		}
	}
	return out
}

var neighbors4 = [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// LabelClusters partitions every solid cell of m into 4-connected clusters,
// ordered by the row-major position of each cluster's first cell.
func LabelClusters(m *DensityMap) []Cluster {
	w, h := m.Width(), m.Height()
	labels := make([]int32, w*h)

	var clusters []Cluster
	var queue []int
	var members []int

	for start := range labels {
		if labels[start] != 0 || !m.cells[start] {
			continue
		}
		id := int32(len(clusters) + 1)
		labels[start] = id
		queue = append(queue[:0], start)
		members = members[:0]
		bounds := image.Rect(start%w, start/w, start%w+1, start/w+1)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			members = append(members, idx)

			x, y := idx%w, idx/w
			bounds = bounds.Union(image.Rect(x, y, x+1, y+1))
			for _, d := range neighbors4 {
				nx, ny := x+d.X, y+d.Y
				if !m.InBounds(nx, ny) {
					continue
				}
				n := ny*w + nx
				if labels[n] == 0 && m.cells[n] {
					labels[n] = id
					queue = append(queue, n)
				}
			}
		}

		mask := NewDensityMap(bounds.Dx(), bounds.Dy())
		for _, idx := range members {
			mask.Set(idx%w-bounds.Min.X, idx/w-bounds.Min.Y, true)
		}
		clusters = append(clusters, Cluster{
			ID:     int(id),
			Size:   len(members),
			Bounds: bounds,
			Mask:   mask,
		})
	}
	return clusters
}

// ExtractClusters labels m and drops clusters whose size is <= minSize.
func ExtractClusters(m *DensityMap, minSize int) []Cluster {
	all := LabelClusters(m)
	kept := all[:0]
	dropped := 0
	for _, c := range all {
		if c.Size <= minSize {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	logger.Named(logger.StageCluster).Debug("clusters extracted",
		zap.Int("kept", len(kept)),
		zap.Int("speckles", dropped),
		zap.Int("min_size", minSize))
	return kept
}
