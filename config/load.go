package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/lixenwraith/audiometer/audio"
	"github.com/lixenwraith/audiometer/constant"
)

// EnvPrefix is prepended to every environment key
const EnvPrefix = "AUDIOMETER"

func setDefaults(v *viper.Viper) {
	def := audio.DefaultConfig()
	v.SetDefault("audio.backend", def.Backend)
	v.SetDefault("audio.buffer_ms", int(constant.SpeakerBufferDuration.Milliseconds()))
	v.SetDefault("audio.open_timeout", def.OpenTimeout)
	v.SetDefault("audio.route_channel", def.RouteChannel)
	v.SetDefault("audio.master_volume", def.MasterVolume)
	v.SetDefault("staircase.carry_adjustment", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads configuration; path may be empty to skip the config file
// Environment variables take precedence over file values
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
