// Package config provides TOML configuration loading for AirClick Core: a
// struct tree with toml tags, a Default constructor, and a Load that falls
// back to defaults when the file is absent. Validate departs from a
// hard-error style: out-of-range values here are clamped and logged once,
// per the configuration surface's ConfigError handling rule rather than
// rejected outright.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/airclick/internal/session"
)

// Config mirrors the documented configuration surface exactly: one section
// per dotted-key prefix.
type Config struct {
	Cursor  CursorConfig  `toml:"cursor"`
	Click   ClickConfig   `toml:"click"`
	Gesture GestureConfig `toml:"gesture"`
	System  SystemConfig  `toml:"system"`
}

// CursorConfig holds the cursor.* keys.
type CursorConfig struct {
	Speed          float64 `toml:"speed"`
	SmoothingLevel float64 `toml:"smoothing_level"`
	DeadZone       float64 `toml:"dead_zone"`
	Enabled        bool    `toml:"enabled"`
}

// ClickConfig holds the click.* keys.
type ClickConfig struct {
	Sensitivity float64 `toml:"sensitivity"`
	Enabled     bool    `toml:"enabled"`
}

// GestureConfig holds the gesture.* keys. HoldTimeSeconds is stored as a
// plain float in the TOML file since TOML has no native duration type.
type GestureConfig struct {
	Sensitivity     float64 `toml:"sensitivity"`
	HoldTimeSeconds float64 `toml:"hold_time"`
}

// SystemConfig holds the system.* keys.
type SystemConfig struct {
	GestureCollectionFrames int     `toml:"gesture_collection_frames"`
	IdleCooldownSeconds     float64 `toml:"idle_cooldown"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Cursor: CursorConfig{
			Speed:          1.0,
			SmoothingLevel: 0.5,
			DeadZone:       0.0,
			Enabled:        true,
		},
		Click: ClickConfig{
			Sensitivity: 0.08,
			Enabled:     true,
		},
		Gesture: GestureConfig{
			Sensitivity:     0.70,
			HoldTimeSeconds: 2.0,
		},
		System: SystemConfig{
			GestureCollectionFrames: 90,
			IdleCooldownSeconds:     1.0,
		},
	}
}

// Load reads and parses a TOML configuration file over the defaults. A
// missing path or missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Validate()
	return cfg, nil
}

// clampRanges bounds every key that the ConfigError policy covers. Bounds
// beyond what spec.md documents directly (dead zone, hold time, collection
// frame count, idle cooldown) are chosen generously around the defaults so
// Validate only fires on clearly malformed input.
var clampRanges = struct {
	cursorSpeed     [2]float64
	cursorSmoothing [2]float64
	cursorDeadZone  [2]float64
	clickSens       [2]float64
	gestureSens     [2]float64
	holdTime        [2]float64
	collectFrames   [2]int
	idleCooldown    [2]float64
}{
	cursorSpeed:     [2]float64{0.1, 5.0},
	cursorSmoothing: [2]float64{0.05, 5.0},
	cursorDeadZone:  [2]float64{0.0, 0.2},
	clickSens:       [2]float64{0.02, 0.2},
	gestureSens:     [2]float64{0.5, 0.95},
	holdTime:        [2]float64{0.3, 5.0},
	collectFrames:   [2]int{30, 300},
	idleCooldown:    [2]float64{0.2, 5.0},
}

func clampFloat(v, lo, hi float64, key string) float64 {
	if v < lo || v > hi {
		if v < lo {
			v = lo
		} else {
			v = hi
		}
		log.Printf("config: %s out of range, clamped to %v", key, v)
	}
	return v
}

func clampInt(v, lo, hi int, key string) int {
	if v < lo || v > hi {
		if v < lo {
			v = lo
		} else {
			v = hi
		}
		log.Printf("config: %s out of range, clamped to %d", key, v)
	}
	return v
}

// Validate clamps every out-of-range key in place, logging once per
// distinct key, and never returns an error: a malformed value is a WARN,
// not a fatal startup condition.
func (c *Config) Validate() {
	c.Cursor.Speed = clampFloat(c.Cursor.Speed, clampRanges.cursorSpeed[0], clampRanges.cursorSpeed[1], "cursor.speed")
	c.Cursor.SmoothingLevel = clampFloat(c.Cursor.SmoothingLevel, clampRanges.cursorSmoothing[0], clampRanges.cursorSmoothing[1], "cursor.smoothing_level")
	c.Cursor.DeadZone = clampFloat(c.Cursor.DeadZone, clampRanges.cursorDeadZone[0], clampRanges.cursorDeadZone[1], "cursor.dead_zone")
	c.Click.Sensitivity = clampFloat(c.Click.Sensitivity, clampRanges.clickSens[0], clampRanges.clickSens[1], "click.sensitivity")
	c.Gesture.Sensitivity = clampFloat(c.Gesture.Sensitivity, clampRanges.gestureSens[0], clampRanges.gestureSens[1], "gesture.sensitivity")
	c.Gesture.HoldTimeSeconds = clampFloat(c.Gesture.HoldTimeSeconds, clampRanges.holdTime[0], clampRanges.holdTime[1], "gesture.hold_time")
	c.System.GestureCollectionFrames = clampInt(c.System.GestureCollectionFrames, clampRanges.collectFrames[0], clampRanges.collectFrames[1], "system.gesture_collection_frames")
	c.System.IdleCooldownSeconds = clampFloat(c.System.IdleCooldownSeconds, clampRanges.idleCooldown[0], clampRanges.idleCooldown[1], "system.idle_cooldown")
}

// ToSessionConfig converts the TOML-facing config into the session
// package's runtime Config, translating the float-seconds fields into
// time.Duration.
func (c *Config) ToSessionConfig() session.Config {
	return session.Config{
		CursorSpeed:         c.Cursor.Speed,
		CursorSmoothing:     c.Cursor.SmoothingLevel,
		CursorDeadZone:      c.Cursor.DeadZone,
		CursorEnabled:       c.Cursor.Enabled,
		ClickSensitivity:    c.Click.Sensitivity,
		ClickEnabled:        c.Click.Enabled,
		GestureSensitivity:  c.Gesture.Sensitivity,
		GestureHoldTime:     time.Duration(c.Gesture.HoldTimeSeconds * float64(time.Second)),
		CollectionMaxFrames: c.System.GestureCollectionFrames,
		IdleCooldown:        time.Duration(c.System.IdleCooldownSeconds * float64(time.Second)),
	}
}
