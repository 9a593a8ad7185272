package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// NoiseParams configures a fractal coherent-noise source.
type NoiseParams struct {
	Frequency  float64 `yaml:"frequency"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
}

// Noise is a seeded 2D Perlin source normalized to [-1, 1].
type Noise struct {
	p         *perlin.Perlin
	frequency float64
	norm      float64
}

// NewNoise builds a noise source. Octaves are summed with weights Gain^i at
// frequencies Lacunarity^i; the result is rescaled by the total weight.
func NewNoise(seed int64, params NoiseParams) *Noise {
	octaves := params.Octaves
	if octaves < 1 {
		octaves = 1
	}
	lacunarity := params.Lacunarity
	if lacunarity <= 0 {
		lacunarity = 2
	}
	gain := params.Gain
	if gain <= 0 {
		gain = 0.5
	}

	norm, w := 0.0, 1.0
	for range octaves {
		norm += w
		w *= gain
	}

	return &Noise{
		p:         perlin.NewPerlin(1/gain, lacunarity, int32(octaves), seed),
		frequency: params.Frequency,
		norm:      norm,
	}
}

// At samples the field at (x, y) scaled by the configured frequency.
func (n *Noise) At(x, y float64) float64 {
	v := n.p.Noise2D(x*n.frequency, y*n.frequency) / n.norm
	return math.Max(-1, math.Min(1, v))
}

// At01 samples the field remapped to [0, 1].
func (n *Noise) At01(x, y float64) float64 {
	return (n.At(x, y) + 1) * 0.5
}
