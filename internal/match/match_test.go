package match

import (
	"context"
	"errors"
	"image"
	gomath "math"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/molee/internal/config"
	"github.com/Faultbox/molee/internal/debug"
	"github.com/Faultbox/molee/internal/terrain"
	"github.com/Faultbox/molee/pkg/math"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Terrain.Width = 200
	cfg.Terrain.Height = 150
	cfg.Terrain.Seed = "match-test"
	cfg.Terrain.Strategy = "hilly"
	return cfg
}

func TestNewSpawnsCharacterOnClearGround(t *testing.T) {
	m, err := New(smallConfig(), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	if m.Terrain().Strategy != terrain.StrategyHilly {
		t.Errorf("strategy = %v, want hilly", m.Terrain().Strategy)
	}
	if m.Terrain().FixtureCount() == 0 {
		t.Fatal("terrain body has no fixtures")
	}
	p := m.CharacterPosition()
	if !m.Terrain().IsAreaClear(p, CharacterHalfWidth, CharacterHalfHeight) {
		t.Errorf("character spawned inside terrain at %v", p)
	}
	if got := m.World().BodyCount(); got != 2 {
		t.Errorf("BodyCount = %d, want terrain and character", got)
	}
}

// flatConfig loads a 120x80 map whose ground top sits at world y 30.
func flatConfig(t *testing.T) (*config.Config, *terrain.DensityMap) {
	t.Helper()
	dm := terrain.NewDensityMap(120, 80)
	dm.FillRect(image.Rect(0, 50, 120, 80), true)
	path := filepath.Join(t.TempDir(), "ground.bmp")
	if err := debug.SaveImage(path, dm.ToGray(), debug.FormatBMP); err != nil {
		t.Fatalf("SaveImage error: %v", err)
	}
	cfg := smallConfig()
	cfg.Terrain.Input = path
	return cfg, dm
}

func TestRunCharacterLands(t *testing.T) {
	cfg, _ := flatConfig(t)
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	if err := m.Run(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if m.Elapsed() < 2*time.Second {
		t.Errorf("elapsed = %v, want at least 2s", m.Elapsed())
	}

	p := m.CharacterPosition()
	if p.Y < 30+CharacterHalfHeight-0.5 || p.Y > 30+CharacterHalfHeight+0.5 {
		t.Errorf("character at %v, want resting on the ground at y=%v", p, 30+CharacterHalfHeight)
	}
}

func TestRunCancelled(t *testing.T) {
	m, err := New(smallConfig(), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestNewFromInputImage(t *testing.T) {
	cfg, dm := flatConfig(t)
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	if !m.Terrain().DensityMap.Equal(dm) {
		t.Error("loaded terrain differs from the input image")
	}
	// Ground top is at world y 30; the character box rests on it.
	if p := m.CharacterPosition(); p.Y < 30+CharacterHalfHeight {
		t.Errorf("character spawned at %v, below the ground surface", p)
	}
}

func TestNewMissingInput(t *testing.T) {
	cfg := smallConfig()
	cfg.Terrain.Input = filepath.Join(t.TempDir(), "missing.png")
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for missing input image")
	}
}

func TestBlastRebuildsTerrain(t *testing.T) {
	m, err := New(smallConfig(), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	before := m.Terrain().DensityMap.Count()
	removed := m.Blast(100, 0, 20)
	if removed == 0 {
		t.Fatal("blast at the map bottom removed nothing")
	}
	if got := m.Terrain().DensityMap.Count(); got != before-removed {
		t.Errorf("count = %d, want %d", got, before-removed)
	}
	if got := m.World().BodyCount(); got != 2 {
		t.Errorf("BodyCount = %d after blast, want 2", got)
	}
}

func TestFireHitsTerrain(t *testing.T) {
	cfg, _ := flatConfig(t)
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	// Hover the character well above the ground so a downward shot starts in the air.
	if err := m.SetGodMode(true); err != nil {
		t.Fatalf("SetGodMode error: %v", err)
	}
	m.Fly(math.V2(0, 1))
	for range 30 {
		m.Update()
	}
	m.Fly(math.Vec2{})
	lifted := m.CharacterPosition()
	if lifted.Y < 30+CharacterHalfHeight+40 {
		t.Fatalf("character only rose to %v in god mode", lifted)
	}

	shot, err := m.Fire(math.V2(0, -1))
	if err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if !m.World().IsBullet(shot) {
		t.Error("projectile should be a bullet")
	}
	start, _ := m.ProjectilePosition(shot)
	if want := lifted.Y - (CharacterHalfHeight + ProjectileRadius + projectileGap); gomath.Abs(start.Y-want) > 1e-9 {
		t.Errorf("projectile spawned at y=%v, want %v", start.Y, want)
	}

	touched := false
	for range 120 {
		m.Update()
		touched = touched || m.World().InContact(shot, m.Terrain().Body())
	}
	if !touched {
		t.Error("projectile never touched the terrain body")
	}
	p, _ := m.ProjectilePosition(shot)
	if p.Y < 30+ProjectileRadius-0.5 || p.Y > 30+ProjectileRadius+0.5 {
		t.Errorf("projectile at %v, want resting on the ground at y=%v", p, 30+ProjectileRadius)
	}
	if hover := m.CharacterPosition(); gomath.Abs(hover.Y-lifted.Y) > 1e-6 {
		t.Errorf("character drifted from %v to %v while hovering", lifted, hover)
	}
	if got := len(m.Projectiles()); got != 1 {
		t.Errorf("Projectiles() has %d entries, want 1", got)
	}
}

func TestFireZeroDirection(t *testing.T) {
	m, err := New(smallConfig(), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	if _, err := m.Fire(math.Vec2{}); !errors.Is(err, ErrNoAim) {
		t.Errorf("Fire(zero) error = %v, want ErrNoAim", err)
	}
	if _, err := m.FireAt(m.CharacterPosition()); !errors.Is(err, ErrNoAim) {
		t.Errorf("FireAt(self) error = %v, want ErrNoAim", err)
	}
	if len(m.Projectiles()) != 0 {
		t.Error("failed shots must not create projectiles")
	}
}

func TestGodModeToggle(t *testing.T) {
	cfg, _ := flatConfig(t)
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close()

	m.Fly(math.V2(0, 1))
	if v, _ := m.World().LinearVelocity(m.Character()); v.Y > 0 {
		t.Errorf("Fly outside god mode set velocity %v", v)
	}

	if err := m.SetGodMode(true); err != nil {
		t.Fatalf("SetGodMode error: %v", err)
	}
	if s, _ := m.World().GravityScale(m.Character()); s != 0 || !m.GodMode() {
		t.Errorf("god mode on: gravity scale %v, GodMode %v", s, m.GodMode())
	}
	m.Fly(math.V2(-3, 0.5))
	if v, _ := m.World().LinearVelocity(m.Character()); v != math.V2(-GodModeFlySpeed, GodModeFlySpeed) {
		t.Errorf("fly velocity = %v, want (-%v, %v)", v, GodModeFlySpeed, GodModeFlySpeed)
	}

	if err := m.SetGodMode(false); err != nil {
		t.Fatalf("SetGodMode error: %v", err)
	}
	if s, _ := m.World().GravityScale(m.Character()); s != 1 || m.GodMode() {
		t.Errorf("god mode off: gravity scale %v, GodMode %v", s, m.GodMode())
	}
}
