package terrain

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
)

// Strategy selects how a density map is synthesized.
type Strategy int

// Generation strategies.
const (
	StrategyHilly Strategy = iota
	StrategySwissCheese

	numStrategies
)

// String returns the strategy's config name.
func (s Strategy) String() string {
	switch s {
	case StrategyHilly:
		return "hilly"
	case StrategySwissCheese:
		return "swiss_cheese"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a config name to a Strategy.
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "hilly":
		return StrategyHilly, true
	case "swiss_cheese", "swiss-cheese":
		return StrategySwissCheese, true
	}
	return 0, false
}

// Hill is one sinusoidal bump on the hilly surface. Amplitude is a fraction of
// the map height, Wavelength and Offset fractions of the map width.
type Hill struct {
	Amplitude  float64 `yaml:"amplitude"`
	Wavelength float64 `yaml:"wavelength"`
	Offset     float64 `yaml:"offset"`
}

// SurfaceNoise perturbs the hilly surface. Amplitude is a fraction of the map height.
type SurfaceNoise struct {
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
}

// HillyParams configures the hilly-with-noise strategy.
type HillyParams struct {
	BaseLevel   float64      `yaml:"base_level"`
	Hills       []Hill       `yaml:"hills"`
	PhaseJitter float64      `yaml:"phase_jitter"`
	Coarse      SurfaceNoise `yaml:"coarse"`
	Fine        SurfaceNoise `yaml:"fine"`
}

// SwissCheeseParams configures the swiss-cheese strategy.
type SwissCheeseParams struct {
	Noise     NoiseParams `yaml:"noise"`
	Threshold float64     `yaml:"threshold"`
}

// GeneratorParams holds the tunables of every strategy.
type GeneratorParams struct {
	Hilly       HillyParams       `yaml:"hilly"`
	SwissCheese SwissCheeseParams `yaml:"swiss_cheese"`
}

// DefaultGeneratorParams returns the stock terrain look.
func DefaultGeneratorParams() GeneratorParams {
	return GeneratorParams{
		Hilly: HillyParams{
			BaseLevel: 0.65,
			Hills: []Hill{
				{Amplitude: 0.15, Wavelength: 0.7, Offset: 0.2},
				{Amplitude: 0.10, Wavelength: 0.55, Offset: 0.65},
			},
			PhaseJitter: 0.1,
			Coarse:      SurfaceNoise{Frequency: 0.005, Amplitude: 0.1},
			Fine:        SurfaceNoise{Frequency: 0.03, Amplitude: 0.02},
		},
		SwissCheese: SwissCheeseParams{
			Noise: NoiseParams{
				Frequency:  0.02,
				Octaves:    2,
				Lacunarity: 2,
				Gain:       0.5,
			},
			Threshold: 0.6,
		},
	}
}

// SeedFromString reduces a seed string to a stable 64-bit value.
func SeedFromString(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// StrategyForSeed picks the strategy a seed maps to.
func StrategyForSeed(seed int64) Strategy {
	return Strategy(uint64(seed) % uint64(numStrategies))
}

// Generator synthesizes density maps.
type Generator struct {
	params GeneratorParams
	force  *Strategy
}

// NewGenerator creates a generator with the given parameters.
func NewGenerator(params GeneratorParams) *Generator {
	return &Generator{params: params}
}

// ForceStrategy makes Generate ignore the seed's strategy choice.
func (g *Generator) ForceStrategy(s Strategy) {
	g.force = &s
}

// Generate builds a width x height map. The same seed always gives the same map.
func (g *Generator) Generate(width, height int, seed string) (*DensityMap, Strategy) {
	n := SeedFromString(seed)
	strategy := StrategyForSeed(n)
	if g.force != nil {
		strategy = *g.force
	}

	logger.Named(logger.StageGenerator).Info("generating density map",
		zap.String("seed", seed),
		zap.Stringer("strategy", strategy),
		zap.Int("width", width),
		zap.Int("height", height))

	m := NewDensityMap(width, height)
	if m.Width() == 0 {
		return m, strategy
	}

	switch strategy {
	case StrategySwissCheese:
		g.swissCheese(m, n)
	default:
		g.hilly(m, n)
	}
	return m, strategy
}

// Generate builds a map with the default parameters.
func Generate(width, height int, seed string) *DensityMap {
	m, _ := NewGenerator(DefaultGeneratorParams()).Generate(width, height, seed)
	return m
}

func (g *Generator) hilly(m *DensityMap, seed int64) {
	p := g.params.Hilly
	w, h := float64(m.Width()), float64(m.Height())

	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	type wave struct{ amp, freq, offset float64 }
	waves := make([]wave, 0, len(p.Hills))
	for _, hill := range p.Hills {
		if hill.Wavelength <= 0 {
			continue
		}
		jitter := (rng.Float64()*2 - 1) * p.PhaseJitter
		waves = append(waves, wave{
			amp:    hill.Amplitude * h,
			freq:   2 * math.Pi / (hill.Wavelength * w),
			offset: (hill.Offset + jitter) * w,
		})
	}

	coarse := NewNoise(seed, NoiseParams{Frequency: p.Coarse.Frequency, Octaves: 1})
	fine := NewNoise(seed+1, NoiseParams{Frequency: p.Fine.Frequency, Octaves: 1})

	for x := 0; x < m.Width(); x++ {
		fx := float64(x)
		surface := p.BaseLevel * h
		for _, wv := range waves {
			surface -= wv.amp * math.Sin((fx-wv.offset)*wv.freq)
		}
		// Sample off the lattice; Perlin noise is zero at integer coordinates.
		surface += coarse.At(fx+0.5, 0.37) * p.Coarse.Amplitude * h
		surface += fine.At(fx+0.5, 11.71) * p.Fine.Amplitude * h
		surface = math.Max(0, math.Min(h-1, surface))

		top := int(math.Ceil(surface))
		for y := top; y < m.Height(); y++ {
			m.Set(x, y, true)
		}
	}
}

func (g *Generator) swissCheese(m *DensityMap, seed int64) {
	p := g.params.SwissCheese
	noise := NewNoise(seed, p.Noise)

	m.Fill(true)
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if noise.At01(float64(x)+0.5, float64(y)+0.5) > p.Threshold {
				m.Set(x, y, false)
			}
		}
	}
}
