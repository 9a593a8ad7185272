// Package debug writes and reads density rasters as grayscale images for
// offline inspection.
package debug

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/molee/internal/terrain"
)

// Export errors.
var (
	ErrUnknownFormat = errors.New("unknown image format")
	ErrNoOutputDir   = errors.New("debug output directory does not exist")
)

// Format is an image encoding supported by the exporter.
type Format string

// Supported formats.
const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatPNG, FormatBMP:
		return f, nil
	case "":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ImageExporter writes density maps into a directory.
type ImageExporter struct {
	outputDir string
	format    Format
	workers   int
}

// NewImageExporter creates an exporter for dir. When create is false the
// directory must already exist.
func NewImageExporter(dir string, format Format, create bool) (*ImageExporter, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatPNG
	}
	if create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	} else if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoOutputDir, dir)
	}
	return &ImageExporter{
		outputDir: dir,
		format:    format,
		workers:   runtime.GOMAXPROCS(0),
	}, nil
}

// Path returns the file path used for an image called name.
func (e *ImageExporter) Path(name string) string {
	return filepath.Join(e.outputDir, name+"."+string(e.format))
}

// ExportDensityMap writes m as <dir>/<name>.<format>.
func (e *ImageExporter) ExportDensityMap(name string, m *terrain.DensityMap) error {
	return SaveImage(e.Path(name), m.ToGray(), e.format)
}

// ExportClusters writes each cluster's mask as <dir>/terrain<ID>.<format>,
// encoding several images concurrently.
func (e *ImageExporter) ExportClusters(clusters []terrain.Cluster) error {
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, c := range clusters {
		g.Go(func() error {
			return e.ExportDensityMap(fmt.Sprintf("terrain%d", c.ID), c.Mask)
		})
	}
	return g.Wait()
}

// SaveImage encodes img to path in the given format.
func SaveImage(path string, img image.Image, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatBMP:
		err = bmp.Encode(file, img)
	case FormatPNG, "":
		err = png.Encode(file, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

// LoadDensityMap decodes a PNG or BMP file; non-black pixels become solid.
func LoadDensityMap(path string) (*terrain.DensityMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening density map: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return terrain.DensityMapFromImage(img), nil
}
