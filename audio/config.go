package audio

import (
	"time"

	"github.com/lixenwraith/audiometer/constant"
)

// Config holds engine and sink settings
type Config struct {
	// Backend is one of auto, speaker, oto, pipe, none
	Backend string
	// BufferDuration sizes backend buffers (speaker, oto)
	BufferDuration time.Duration
	// OpenTimeout bounds sink acquisition in Start
	OpenTimeout time.Duration
	// RouteChannel sends each voice only to its pan side; false plays centered
	RouteChannel bool
	// MasterVolume scales all voices (0.0-1.0)
	MasterVolume float64
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:        SinkAuto,
		BufferDuration: constant.SpeakerBufferDuration,
		OpenTimeout:    constant.SinkOpenTimeout,
		RouteChannel:   true,
		MasterVolume:   1.0,
	}
}
