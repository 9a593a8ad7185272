package debug

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Faultbox/molee/internal/terrain"
)

func sampleMap() *terrain.DensityMap {
	m := terrain.NewDensityMap(12, 8)
	m.FillRect(image.Rect(1, 1, 5, 5), true)
	m.FillRect(image.Rect(7, 2, 11, 7), true)
	return m
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"BMP", FormatBMP, false},
		{"", FormatPNG, false},
		{"tiff", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatPNG, FormatBMP} {
		t.Run(string(format), func(t *testing.T) {
			exp, err := NewImageExporter(t.TempDir(), format, false)
			if err != nil {
				t.Fatalf("NewImageExporter error: %v", err)
			}
			m := sampleMap()
			if err := exp.ExportDensityMap("terrain", m); err != nil {
				t.Fatalf("ExportDensityMap error: %v", err)
			}

			loaded, err := LoadDensityMap(exp.Path("terrain"))
			if err != nil {
				t.Fatalf("LoadDensityMap error: %v", err)
			}
			if !loaded.Equal(m) {
				t.Error("loaded map differs from exported map")
			}
		})
	}
}

func TestExportClusters(t *testing.T) {
	dir := t.TempDir()
	exp, err := NewImageExporter(dir, FormatPNG, false)
	if err != nil {
		t.Fatalf("NewImageExporter error: %v", err)
	}

	clusters := terrain.LabelClusters(sampleMap())
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if err := exp.ExportClusters(clusters); err != nil {
		t.Fatalf("ExportClusters error: %v", err)
	}

	for _, c := range clusters {
		path := filepath.Join(dir, "terrain"+strconv.Itoa(c.ID)+".png")
		loaded, err := LoadDensityMap(path)
		if err != nil {
			t.Fatalf("LoadDensityMap(%s) error: %v", path, err)
		}
		if loaded.Count() != c.Size {
			t.Errorf("cluster %d image has %d solid pixels, want %d", c.ID, loaded.Count(), c.Size)
		}
	}
}

func TestMissingOutputDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := NewImageExporter(missing, FormatPNG, false); !errors.Is(err, ErrNoOutputDir) {
		t.Errorf("NewImageExporter(missing) error = %v, want ErrNoOutputDir", err)
	}

	if _, err := NewImageExporter(missing, FormatPNG, true); err != nil {
		t.Fatalf("NewImageExporter(create) error: %v", err)
	}
	if _, err := os.Stat(missing); err != nil {
		t.Errorf("expected directory to be created: %v", err)
	}
}

func TestLoadDensityMapMissing(t *testing.T) {
	if _, err := LoadDensityMap("/nonexistent/terrain.png"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}
