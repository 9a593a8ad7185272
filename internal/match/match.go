// Package match wires a physics world, a destructible terrain and the player
// character into one simulated match.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/config"
	"github.com/Faultbox/molee/internal/debug"
	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/internal/physics"
	"github.com/Faultbox/molee/internal/terrain"
	"github.com/Faultbox/molee/pkg/math"
)

// Character box size in world units.
const (
	CharacterHalfWidth  = 5.0
	CharacterHalfHeight = 10.0
)

// TimeStep is the fixed simulation step in seconds.
const TimeStep = 1.0 / 60.0

// Projectile and god mode tuning in world units.
const (
	ProjectileRadius = 5.0
	ProjectileSpeed  = 750.0
	GodModeFlySpeed  = 100.0

	// projectileGap keeps a new projectile clear of the character's box.
	projectileGap = 0.1
)

// ErrNoAim is returned when a shot has no usable direction.
var ErrNoAim = errors.New("aim direction is zero")

// CharacterFixture is the surface of the player character.
var CharacterFixture = physics.FixtureParams{Density: 1, Friction: 0.5}

// Match is one running terrain simulation.
type Match struct {
	world     *physics.World
	terrain   *terrain.Terrain
	character physics.BodyHandle
	elapsed   time.Duration
	steps     int

	projectiles []physics.BodyHandle
	godMode     bool
}

// New builds the world and terrain described by cfg and spawns the character
// above the ground at the horizontal center of the map. sink may be nil.
func New(cfg *config.Config, sink terrain.DebugSink) (*Match, error) {
	log := logger.Named(logger.StageMatch)

	world := physics.NewWorld(cfg.Physics.Gravity())
	world.SetStepConfig(cfg.Physics.StepConfig())

	opts := cfg.TerrainOptions()
	opts.Debug = sink

	m := &Match{world: world}
	if cfg.Terrain.Input != "" {
		dm, err := debug.LoadDensityMap(cfg.Terrain.Input)
		if err != nil {
			return nil, fmt.Errorf("loading terrain: %w", err)
		}
		log.Info("terrain loaded from image",
			zap.String("path", cfg.Terrain.Input),
			zap.Int("width", dm.Width()),
			zap.Int("height", dm.Height()))
		m.terrain = terrain.NewFromDensityMap(world, dm, opts)
	} else {
		m.terrain = terrain.New(world, cfg.Terrain.Width, cfg.Terrain.Height, cfg.Terrain.Seed, opts)
	}

	spawn := m.terrain.FindSafeSpawnLocation(
		math.V2(float64(m.terrain.Width())/2, CharacterHalfHeight),
		CharacterHalfWidth, CharacterHalfHeight)
	m.character = world.CreateDynamicBox(spawn, CharacterHalfWidth, CharacterHalfHeight, CharacterFixture)

	log.Info("match ready",
		zap.Int("triangles", len(m.terrain.Triangles)),
		zap.Int("fixtures", m.terrain.FixtureCount()),
		zap.Float64s("spawn", []float64{spawn.X, spawn.Y}))
	return m, nil
}

// Terrain returns the match terrain.
func (m *Match) Terrain() *terrain.Terrain { return m.terrain }

// World returns the physics world.
func (m *Match) World() *physics.World { return m.world }

// Character returns the handle of the player character.
func (m *Match) Character() physics.BodyHandle { return m.character }

// CharacterPosition returns the character's center in world space.
func (m *Match) CharacterPosition() math.Vec2 {
	p, err := m.world.BodyPosition(m.character)
	if err != nil {
		logger.Warn("character missing", zap.Error(err))
	}
	return p
}

// Elapsed returns the simulated time so far.
func (m *Match) Elapsed() time.Duration { return m.elapsed }

// Update advances the simulation by one fixed step.
func (m *Match) Update() {
	m.world.Step(TimeStep)
	m.steps++
	m.elapsed = time.Duration(float64(m.steps) * TimeStep * float64(time.Second))
}

// Run steps the simulation until d of simulated time has passed or ctx is done.
func (m *Match) Run(ctx context.Context, d time.Duration) error {
	log := logger.Named(logger.StageMatch)
	end := m.elapsed + d
	log.Debug("simulation started", zap.Duration("duration", d))

	for m.elapsed < end {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.Update()
	}

	p := m.CharacterPosition()
	log.Debug("simulation finished",
		zap.Duration("elapsed", m.elapsed),
		zap.Float64s("character", []float64{p.X, p.Y}))
	return nil
}

// Fire launches a projectile from the character's edge along dir.
func (m *Match) Fire(dir math.Vec2) (physics.BodyHandle, error) {
	if dir.Dot(dir) <= 1e-6 {
		return 0, ErrNoAim
	}
	d := dir.Normalize()
	offset := math.V2(
		d.X*(CharacterHalfWidth+ProjectileRadius+projectileGap),
		d.Y*(CharacterHalfHeight+ProjectileRadius+projectileGap))
	start := m.CharacterPosition().Add(offset)

	h := m.world.CreateProjectile(start, d.Scale(ProjectileSpeed), ProjectileRadius)
	m.projectiles = append(m.projectiles, h)
	logger.Named(logger.StageMatch).Debug("projectile fired",
		zap.Float64s("from", []float64{start.X, start.Y}),
		zap.Float64s("dir", []float64{d.X, d.Y}))
	return h, nil
}

// FireAt aims a projectile from the character toward the world point target.
func (m *Match) FireAt(target math.Vec2) (physics.BodyHandle, error) {
	return m.Fire(target.Sub(m.CharacterPosition()))
}

// Projectiles returns the handles of every projectile fired so far.
func (m *Match) Projectiles() []physics.BodyHandle { return m.projectiles }

// ProjectilePosition returns the center of projectile h.
func (m *Match) ProjectilePosition(h physics.BodyHandle) (math.Vec2, error) {
	return m.world.BodyPosition(h)
}

// SetGodMode turns gravity off for the character and stops it in place, or
// restores normal gravity.
func (m *Match) SetGodMode(on bool) error {
	scale := 1.0
	if on {
		scale = 0
		if err := m.world.SetLinearVelocity(m.character, math.Vec2{}); err != nil {
			return err
		}
	}
	if err := m.world.SetGravityScale(m.character, scale); err != nil {
		return err
	}
	m.godMode = on
	logger.Named(logger.StageMatch).Info("god mode", zap.Bool("active", on))
	return nil
}

// GodMode reports whether the character ignores gravity.
func (m *Match) GodMode() bool { return m.godMode }

// Fly moves the character at GodModeFlySpeed along each axis where dir is
// non-zero. A zero dir hovers. It does nothing outside god mode.
func (m *Match) Fly(dir math.Vec2) {
	if !m.godMode {
		return
	}
	v := math.V2(axis(dir.X)*GodModeFlySpeed, axis(dir.Y)*GodModeFlySpeed)
	if err := m.world.SetLinearVelocity(m.character, v); err != nil {
		logger.Warn("character missing", zap.Error(err))
	}
}

func axis(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Blast carves a crater of radius around (x, y) and rebuilds the terrain.
func (m *Match) Blast(x, y, radius float64) int {
	return m.terrain.DeformTerrain(x, y, radius)
}

// Close releases the projectiles and the terrain body.
func (m *Match) Close() {
	logger.Named(logger.StageMatch).Info("closing match", zap.Int("projectiles", len(m.projectiles)))
	for _, h := range m.projectiles {
		if err := m.world.DestroyBody(h); err != nil {
			logger.Warn("destroying projectile", zap.Error(err))
		}
	}
	m.projectiles = nil
	if m.terrain != nil {
		m.terrain.Destroy()
	}
}
