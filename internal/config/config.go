// Package config handles viewer and engine configuration loading.
package config

import (
	"fmt"

	"github.com/Faultbox/skinrig/internal/pose"
	"github.com/Faultbox/skinrig/internal/skin"
	"github.com/Faultbox/skinrig/internal/skinning"
)

// Config holds all settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Model     ModelConfig     `yaml:"model"`
	Animation AnimationConfig `yaml:"animation"`
	Skinning  SkinningConfig  `yaml:"skinning"`
	Pose      pose.Config     `yaml:"pose"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FOV        float32 `yaml:"fov"` // degrees
}

// ModelConfig selects the avatar to load.
type ModelConfig struct {
	Path string `yaml:"path"` // empty loads the built-in synthetic avatar
}

// AnimationConfig holds the tick rates.
type AnimationConfig struct {
	TickHz     int `yaml:"tick_hz"`
	RenderHz   int `yaml:"render_hz"`
	MaxCatchUp int `yaml:"max_catch_up"` // ticks per frame before frames are dropped
}

// SkinningConfig controls path selection and the CPU safety net.
type SkinningConfig struct {
	PreferGPU          bool                    `yaml:"prefer_gpu"`
	CPUEnabled         bool                    `yaml:"cpu_enabled"`
	MaxJoints          int                     `yaml:"max_joints"`
	ExplosionThreshold float32                 `yaml:"explosion_threshold"` // model units for a metre-scale rig
	ScaleThreshold     bool                    `yaml:"scale_threshold"`     // grow the threshold with larger units (cm rigs)
	Fallback           skinning.FallbackPolicy `yaml:"fallback"`
	RestrictedRoot     string                  `yaml:"restricted_root"` // bone name, empty skins everything
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  960,
			Height: 720,
			VSync:  true,
			FOV:    35,
		},
		Animation: AnimationConfig{
			TickHz:     30,
			RenderHz:   60,
			MaxCatchUp: 4,
		},
		Skinning: SkinningConfig{
			PreferGPU:          true,
			CPUEnabled:         true,
			MaxJoints:          skin.MaxJoints,
			ExplosionThreshold: skinning.DefaultExplosionThreshold,
			ScaleThreshold:     true,
			Fallback:           skinning.FallbackPermanent,
		},
		Pose: pose.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Animation.TickHz <= 0 || c.Animation.RenderHz <= 0 {
		return fmt.Errorf("config: tick and render rates must be positive (got %d/%d)",
			c.Animation.TickHz, c.Animation.RenderHz)
	}
	if c.Skinning.MaxJoints <= 0 || c.Skinning.MaxJoints > skin.MaxJoints {
		return fmt.Errorf("config: max_joints must be in 1..%d (got %d)", skin.MaxJoints, c.Skinning.MaxJoints)
	}
	if c.Skinning.ExplosionThreshold <= 0 {
		return fmt.Errorf("config: explosion_threshold must be positive (got %v)", c.Skinning.ExplosionThreshold)
	}
	if c.Pose.Blink.MinInterval > c.Pose.Blink.MaxInterval {
		return fmt.Errorf("config: blink min_interval %v exceeds max_interval %v",
			c.Pose.Blink.MinInterval, c.Pose.Blink.MaxInterval)
	}
	return nil
}
