// Package terrain turns a seeded density raster into triangulated collision
// geometry: generation, 4-connected clustering, contour tracing, ear clipping
// and static body synthesis.
package terrain

import (
	"image"
	"image/color"
)

// DensityMap is a fixed-size binary raster of solid (true) and empty cells.
// Cells are stored row-major with y growing downward.
type DensityMap struct {
	width  int
	height int
	cells  []bool
}

// NewDensityMap allocates an all-empty map. Non-positive dimensions give a 0x0 map.
func NewDensityMap(width, height int) *DensityMap {
	if width <= 0 || height <= 0 {
		width, height = 0, 0
	}
	return &DensityMap{
		width:  width,
		height: height,
		cells:  make([]bool, width*height),
	}
}

// Width returns the number of columns.
func (m *DensityMap) Width() int { return m.width }

// Height returns the number of rows.
func (m *DensityMap) Height() int { return m.height }

// Bounds returns the raster rectangle.
func (m *DensityMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// InBounds reports whether (x, y) addresses a cell.
func (m *DensityMap) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

// At reports whether (x, y) is solid. Out-of-range cells are empty.
func (m *DensityMap) At(x, y int) bool {
	if !m.InBounds(x, y) {
		return false
	}
	return m.cells[y*m.width+x]
}

// Set marks (x, y) solid or empty. Out-of-range writes are ignored.
func (m *DensityMap) Set(x, y int, solid bool) {
	if !m.InBounds(x, y) {
		return
	}
	m.cells[y*m.width+x] = solid
}

// Fill sets every cell to solid.
func (m *DensityMap) Fill(solid bool) {
	for i := range m.cells {
		m.cells[i] = solid
	}
}

// FillRect sets every cell inside r (clipped to the map) to solid.
func (m *DensityMap) FillRect(r image.Rectangle, solid bool) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.cells[y*m.width+x] = solid
		}
	}
}

// Count returns the number of solid cells.
func (m *DensityMap) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Equal reports whether both maps have the same dimensions and contents.
func (m *DensityMap) Equal(other *DensityMap) bool {
	if other == nil || m.width != other.width || m.height != other.height {
		return false
	}
	for i, c := range m.cells {
		if other.cells[i] != c {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *DensityMap) Clone() *DensityMap {
	c := &DensityMap{width: m.width, height: m.height, cells: make([]bool, len(m.cells))}
	copy(c.cells, m.cells)
	return c
}

// ToGray renders the map as an 8-bit image, solid cells white.
func (m *DensityMap) ToGray() *image.Gray {
	img := image.NewGray(m.Bounds())
	for y := 0; y < m.height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+m.width]
		for x := range row {
			if m.cells[y*m.width+x] {
				row[x] = 255
			}
		}
	}
	return img
}

// DensityMapFromImage thresholds img: any pixel with non-zero luminance is solid.
func DensityMapFromImage(img image.Image) *DensityMap {
	b := img.Bounds()
	m := NewDensityMap(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y > 0 {
				m.cells[(y-b.Min.Y)*m.width+(x-b.Min.X)] = true
			}
		}
	}
	return m
}
