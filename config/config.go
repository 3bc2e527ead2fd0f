package config

import (
	"time"

	"github.com/lixenwraith/audiometer/audio"
	"github.com/lixenwraith/audiometer/staircase"
)

// Config holds all application configuration
type Config struct {
	Audio     AudioConfig     `mapstructure:"audio" validate:"required"`
	Staircase StaircaseConfig `mapstructure:"staircase"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
}

// AudioConfig selects and tunes the output backend
type AudioConfig struct {
	Backend      string        `mapstructure:"backend" validate:"required,oneof=auto speaker oto pipe none"`
	BufferMs     int           `mapstructure:"buffer_ms" validate:"gte=10,lte=1000"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
	RouteChannel bool          `mapstructure:"route_channel"`
	MasterVolume float64       `mapstructure:"master_volume" validate:"gte=0,lte=1"`
}

// StaircaseConfig selects the level policy
type StaircaseConfig struct {
	// CarryAdjustment keeps the every-third-response raise instead of discarding it
	CarryAdjustment bool `mapstructure:"carry_adjustment"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	// File receives logs while the terminal UI owns the screen; empty discards them
	File string `mapstructure:"file"`
}

// Engine converts to the audio engine configuration
func (c *Config) Engine() *audio.Config {
	return &audio.Config{
		Backend:        c.Audio.Backend,
		BufferDuration: time.Duration(c.Audio.BufferMs) * time.Millisecond,
		OpenTimeout:    c.Audio.OpenTimeout,
		RouteChannel:   c.Audio.RouteChannel,
		MasterVolume:   c.Audio.MasterVolume,
	}
}

// Policy returns the configured staircase policy
func (c *Config) Policy() staircase.Policy {
	if c.Staircase.CarryAdjustment {
		return staircase.PolicyCarryAdjustment
	}
	return staircase.PolicyLiteral
}
