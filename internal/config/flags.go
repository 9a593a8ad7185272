package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagSeed     = flag.String("seed", "", "Terrain seed")
	flagWidth    = flag.Int("width", 0, "Map width in cells")
	flagHeight   = flag.Int("height", 0, "Map height in cells")
	flagStrategy = flag.String("strategy", "", "Generation strategy (hilly, swiss_cheese)")
	flagExport   = flag.String("export", "", "Export debug images to this directory")
	flagInput    = flag.String("input", "", "Load the density map from an image instead of generating")
	flagSave     = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether --save-config was given.
func SaveRequested() bool {
	return *flagSave
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagSeed != "" {
		cfg.Terrain.Seed = *flagSeed
	}
	if *flagWidth > 0 {
		cfg.Terrain.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Terrain.Height = *flagHeight
	}
	if *flagStrategy != "" {
		cfg.Terrain.Strategy = *flagStrategy
	}
	if *flagExport != "" {
		cfg.Debug.ExportImages = true
		cfg.Debug.OutputDir = *flagExport
	}
	if *flagInput != "" {
		cfg.Terrain.Input = *flagInput
	}
}
