package config

import (
	"flag"

	"github.com/Faultbox/skinrig/internal/skinning"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagModel      = flag.String("model", "", "Path to a .gltf or .glb avatar")
	flagCPU        = flag.Bool("cpu", false, "Skin on the CPU even when shaders are available")
	flagRestrict   = flag.String("restrict", "", "Re-skin only vertices under this bone on the CPU path")
	flagTransient  = flag.Bool("transient", false, "Discard exploded vertices per tick instead of freezing the mesh")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagModel != "" {
		cfg.Model.Path = *flagModel
	}
	if *flagCPU {
		cfg.Skinning.PreferGPU = false
		cfg.Skinning.CPUEnabled = true
	}
	if *flagRestrict != "" {
		cfg.Skinning.RestrictedRoot = *flagRestrict
	}
	if *flagTransient {
		cfg.Skinning.Fallback = skinning.FallbackTransient
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
}
