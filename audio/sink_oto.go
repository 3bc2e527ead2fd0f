package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep"

	"github.com/lixenwraith/audiometer/constant"
)

// oto allows a single context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext(bufferDuration time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   constant.SampleRate,
			ChannelCount: constant.AudioChannels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferDuration,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// otoSink renders through an oto player reading float32 stereo frames
type otoSink struct {
	mu             sync.Mutex
	bufferDuration time.Duration
	player         *oto.Player
}

func newOtoSink(bufferDuration time.Duration) *otoSink {
	return &otoSink{bufferDuration: bufferDuration}
}

func (s *otoSink) Name() string { return SinkOto }

func (s *otoSink) Open(src beep.Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		return nil
	}

	ctx, err := otoContext(s.bufferDuration)
	if err != nil {
		return err
	}

	s.player = ctx.NewPlayer(newFrameReader(src))
	s.player.Play()
	return nil
}

func (s *otoSink) Errors() <-chan error { return nil }

// Close releases the player; the shared context stays alive
func (s *otoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}

// frameReader adapts a beep.Streamer to float32 LE interleaved stereo bytes
type frameReader struct {
	src    beep.Streamer
	frames [][2]float64
}

const float32FrameBytes = 8

func newFrameReader(src beep.Streamer) *frameReader {
	return &frameReader{src: src, frames: make([][2]float64, 1024)}
}

func (r *frameReader) Read(p []byte) (int, error) {
	n := len(p) / float32FrameBytes
	if n == 0 {
		return 0, nil
	}
	if len(r.frames) < n {
		r.frames = make([][2]float64, n)
	}
	frames := r.frames[:n]

	got, ok := r.src.Stream(frames)
	if !ok {
		got = 0
	}
	silence(frames[got:])

	for i, f := range frames {
		idx := i * float32FrameBytes
		binary.LittleEndian.PutUint32(p[idx:], math.Float32bits(float32(f[0])))
		binary.LittleEndian.PutUint32(p[idx+4:], math.Float32bits(float32(f[1])))
	}
	return n * float32FrameBytes, nil
}
