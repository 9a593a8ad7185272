// Package main is the entry point for the terrain generator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/config"
	"github.com/Faultbox/molee/internal/debug"
	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/internal/match"
	"github.com/Faultbox/molee/internal/terrain"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Molee Terrain Generator ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			logger.Warn("saving config", zap.Error(err))
		} else {
			logger.Info("config saved", zap.String("dir", config.ConfigDir()))
		}
	}

	if err := run(cfg); err != nil {
		logger.Error("terragen failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	var sink terrain.DebugSink
	if cfg.Debug.ExportImages {
		format, err := debug.ParseFormat(cfg.Debug.Format)
		if err != nil {
			return err
		}
		exp, err := debug.NewImageExporter(cfg.Debug.OutputDir, format, cfg.Debug.CreateDir)
		if err != nil {
			return fmt.Errorf("debug export: %w", err)
		}
		sink = exp
	}

	m, err := match.New(cfg, sink)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := m.Run(ctx, time.Second); err != nil {
		return err
	}

	t := m.Terrain()
	area := 0.0
	for _, c := range t.Clusters {
		area += c.Area
	}
	pos := m.CharacterPosition()

	if cfg.Terrain.Input != "" {
		fmt.Printf("input:      %s\n", cfg.Terrain.Input)
	} else {
		fmt.Printf("seed:       %q\n", t.Seed)
		fmt.Printf("strategy:   %v\n", t.Strategy)
	}
	fmt.Printf("size:       %dx%d (%d solid)\n", t.Width(), t.Height(), t.DensityMap.Count())
	fmt.Printf("clusters:   %d\n", len(t.Clusters))
	for _, c := range t.Clusters {
		fmt.Printf("  #%-4d cells=%-7d shapes=%-3d holes=%-3d triangles=%-5d area=%.1f\n",
			c.ID, c.Size, c.Shapes, c.Holes, c.Triangles, c.Area)
	}
	fmt.Printf("triangles:  %d (area %.1f)\n", len(t.Triangles), area)
	fmt.Printf("fixtures:   %d\n", t.FixtureCount())
	fmt.Printf("conversion: %v\n", t.ConversionTime)
	fmt.Printf("character:  (%.2f, %.2f) after %v\n", pos.X, pos.Y, m.Elapsed())
	return nil
}
