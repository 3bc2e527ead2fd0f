package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/audiometer/constant"
)

// speakerSink renders through the beep speaker
// The speaker is process-wide; only one speakerSink should be open at a time
type speakerSink struct {
	mu             sync.Mutex
	bufferDuration time.Duration
	ctrl           *beep.Ctrl
	initialized    bool
}

func newSpeakerSink(bufferDuration time.Duration) *speakerSink {
	return &speakerSink{bufferDuration: bufferDuration}
}

func (s *speakerSink) Name() string { return SinkSpeaker }

// Open initializes the speaker and starts streaming src
func (s *speakerSink) Open(src beep.Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	sr := beep.SampleRate(constant.SampleRate)
	if err := speaker.Init(sr, sr.N(s.bufferDuration)); err != nil {
		return err
	}

	s.ctrl = &beep.Ctrl{Streamer: src, Paused: false}
	speaker.Play(s.ctrl)
	s.initialized = true
	return nil
}

func (s *speakerSink) Errors() <-chan error { return nil }

// Close pauses and clears the speaker before closing it
func (s *speakerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	// Pause first so the final buffer drains as silence instead of a cut tone
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()

	speaker.Clear()
	speaker.Close()
	s.ctrl = nil
	s.initialized = false
	return nil
}
