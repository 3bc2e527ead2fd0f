package audio

import (
	"fmt"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/audiometer/tone"
)

// toneStreamer plays a mono tone buffer as stereo frames
type toneStreamer struct {
	samples []float64
	pan     Pan
	pos     int
}

func newToneStreamer(buf tone.Buffer, pan Pan) *toneStreamer {
	return &toneStreamer{samples: buf.Samples, pan: pan}
}

func (s *toneStreamer) Stream(frames [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	for n < len(frames) && s.pos < len(s.samples) {
		frames[n] = s.pan.frame(s.samples[s.pos])
		n++
		s.pos++
	}
	return n, true
}

func (s *toneStreamer) Err() error { return nil }

func (s *toneStreamer) Len() int { return len(s.samples) }

func (s *toneStreamer) Position() int { return s.pos }

func (s *toneStreamer) Seek(p int) error {
	if p < 0 || p > len(s.samples) {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, len(s.samples))
	}
	s.pos = p
	return nil
}

// newVolume scales s by the linear gain vol
// effects.Volume is logarithmic; a gain of zero or less maps to Silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	v := &effects.Volume{Streamer: s, Base: 2}
	if vol <= 0 {
		v.Silent = true
		return v
	}
	v.Volume = math.Log2(vol)
	return v
}

// buildVoice assembles the streamer chain for one buffer
func buildVoice(buf tone.Buffer, loop bool, pan Pan, targetRate int, volume float64) beep.Streamer {
	src := newToneStreamer(buf, pan)

	var s beep.Streamer = src
	if loop {
		s = beep.Loop(-1, src)
	}
	if buf.SampleRate != targetRate {
		s = beep.Resample(4, beep.SampleRate(buf.SampleRate), beep.SampleRate(targetRate), s)
	}
	if volume != 1.0 {
		s = newVolume(s, volume)
	}
	return s
}
