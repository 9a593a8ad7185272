// Package config handles terrain tool configuration loading and management.
package config

import (
	"github.com/Faultbox/molee/internal/physics"
	"github.com/Faultbox/molee/internal/terrain"
	"github.com/Faultbox/molee/pkg/math"
)

// Config holds all settings.
type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	Physics PhysicsConfig `yaml:"physics"`
	Debug   DebugConfig   `yaml:"debug"`
	Logging LoggingConfig `yaml:"logging"`
}

// TerrainConfig holds map generation and conversion settings.
type TerrainConfig struct {
	Width             int                     `yaml:"width"`
	Height            int                     `yaml:"height"`
	Seed              string                  `yaml:"seed"`
	Strategy          string                  `yaml:"strategy"` // empty selects from the seed
	Input             string                  `yaml:"input"`    // raster image to load instead of generating
	MinClusterSize    int                     `yaml:"min_cluster_size"`
	Simplify          string                  `yaml:"simplify"`
	SimplifyTolerance float64                 `yaml:"simplify_tolerance"`
	Generator         terrain.GeneratorParams `yaml:",inline"`
}

// PhysicsConfig holds physics world settings.
type PhysicsConfig struct {
	GravityX           float64 `yaml:"gravity_x"`
	GravityY           float64 `yaml:"gravity_y"`
	Friction           float64 `yaml:"friction"`
	Restitution        float64 `yaml:"restitution"`
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
}

// DebugConfig holds debug image export settings.
type DebugConfig struct {
	ExportImages bool   `yaml:"export_images"`
	OutputDir    string `yaml:"output_dir"`
	Format       string `yaml:"format"`
	CreateDir    bool   `yaml:"create_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the match view's settings.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			Width:             2048,
			Height:            1536,
			Seed:              "whacka-molee_match",
			MinClusterSize:    terrain.MinSpeckleSize,
			Simplify:          "polygon",
			SimplifyTolerance: 1,
			Generator:         terrain.DefaultGeneratorParams(),
		},
		Physics: PhysicsConfig{
			GravityX:           0,
			GravityY:           -98,
			Friction:           0.6,
			Restitution:        0,
			VelocityIterations: 8,
			PositionIterations: 3,
		},
		Debug: DebugConfig{
			ExportImages: false,
			OutputDir:    "dbg",
			Format:       "png",
			CreateDir:    true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Gravity returns the configured gravity vector.
func (p PhysicsConfig) Gravity() math.Vec2 {
	return math.V2(p.GravityX, p.GravityY)
}

// StepConfig returns the solver settings for physics.World.
func (p PhysicsConfig) StepConfig() physics.StepConfig {
	return physics.StepConfig{
		VelocityIterations: p.VelocityIterations,
		PositionIterations: p.PositionIterations,
	}
}

// TerrainOptions converts the config into pipeline options. An unknown
// simplify mode falls back to polygon simplification.
func (c *Config) TerrainOptions() terrain.Options {
	opts := terrain.DefaultOptions()
	opts.MinClusterSize = c.Terrain.MinClusterSize
	opts.Strategy = c.Terrain.Strategy
	opts.Generator = c.Terrain.Generator
	if mode, ok := terrain.ParseSimplifyMode(c.Terrain.Simplify); ok {
		opts.Trace.Mode = mode
	}
	opts.Trace.Tolerance = c.Terrain.SimplifyTolerance
	opts.Fixture.Friction = c.Physics.Friction
	opts.Fixture.Restitution = c.Physics.Restitution
	return opts
}
