package audio

import (
	"errors"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/audiometer/tone"
)

// Pan routes a mono voice onto the stereo output
type Pan int

const (
	PanCenter Pan = iota
	PanLeft
	PanRight
)

func (p Pan) String() string {
	switch p {
	case PanLeft:
		return "left"
	case PanRight:
		return "right"
	default:
		return "center"
	}
}

// ParsePan maps "left", "right" or anything else (center)
func ParsePan(s string) Pan {
	switch s {
	case "left", "l":
		return PanLeft
	case "right", "r":
		return PanRight
	default:
		return PanCenter
	}
}

// frame returns the stereo frame for mono sample v
func (p Pan) frame(v float64) [2]float64 {
	switch p {
	case PanLeft:
		return [2]float64{v, 0}
	case PanRight:
		return [2]float64{0, v}
	default:
		return [2]float64{v, v}
	}
}

// BufferInfo describes a voice handed to the deck
type BufferInfo struct {
	Params tone.Params
	Pan    Pan
	Loop   bool
}

// Observer receives engine notifications on the engine's dispatch goroutine
// Implementations must not call Start or Stop from a callback
type Observer interface {
	// OnBufferStarted fires when the render thread pulls the first frames of a voice
	OnBufferStarted(info BufferInfo)
	// OnEngineFailed fires when the output could not be acquired or was lost
	OnEngineFailed(err error)
}

// Sink renders frames pulled from src on a backend-owned execution context
type Sink interface {
	Name() string
	// Open acquires the output and starts pulling from src
	Open(src beep.Streamer) error
	// Errors reports asynchronous output loss; nil if the sink never fails after Open
	Errors() <-chan error
	// Close releases the output; safe to call when not open
	Close() error
}

// BackendType identifies a pipe backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// Sink names accepted by NewSink
const (
	SinkAuto    = "auto"
	SinkSpeaker = "speaker"
	SinkOto     = "oto"
	SinkPipe    = "pipe"
	SinkNone    = "none"
)

// Sentinel errors
var (
	ErrEngineUnavailable = errors.New("audio engine unavailable")
	ErrEngineRunning     = errors.New("audio engine already running")
	ErrNoAudioBackend    = errors.New("no compatible audio backend found")
	ErrPipeClosed        = errors.New("audio pipe closed")
	ErrUnknownSink       = errors.New("unknown audio sink")
)
