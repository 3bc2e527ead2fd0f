package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/tone"
)

// TestEngineStartStop verifies lifecycle and idempotent stop
func TestEngineStartStop(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)

	require.NoError(t, e.Start())
	assert.True(t, e.IsRunning())
	assert.False(t, e.IsDegraded())
	assert.Equal(t, "fake", e.SinkName())

	e.Stop()
	assert.False(t, e.IsRunning())

	e.Stop()
	opens, closes := sink.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestEngineStartTwice(t *testing.T) {
	e := NewEngine(DefaultConfig(), newFakeSink("fake"), nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	assert.ErrorIs(t, e.Start(), ErrEngineRunning)
}

// TestEngineRestart verifies the output is reacquired after a stop
func TestEngineRestart(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)

	require.NoError(t, e.Start())
	e.Stop()
	require.NoError(t, e.Start())
	e.Stop()

	opens, closes := sink.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes)
}

// TestEngineDegradedStart verifies acquisition failure is non-fatal
func TestEngineDegradedStart(t *testing.T) {
	sink := newFakeSink("fake")
	sink.openErr = errors.New("device busy")
	obs := newRecordingObserver()

	e := NewEngine(DefaultConfig(), sink, nil)
	e.Observe(obs)

	err := e.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.True(t, e.IsRunning())
	assert.True(t, e.IsDegraded())

	select {
	case ferr := <-obs.failed:
		assert.ErrorIs(t, ferr, ErrEngineUnavailable)
	case <-time.After(time.Second):
		t.Fatal("observer not notified of failure")
	}

	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	assert.False(t, e.Play(buf, true, PanLeft))
	assert.Equal(t, 0, e.ActiveVoices())

	e.Stop()
	_, closes := sink.counts()
	assert.Equal(t, 0, closes, "unopened sink must not be closed")

	_, skipped, _ := e.GetStats()
	assert.Equal(t, uint64(1), skipped)
}

func TestEngineNilSink(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	err := e.Start()
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.ErrorContains(t, err, ErrNoAudioBackend.Error())
	assert.Equal(t, SinkNone, e.SinkName())
	e.Stop()
}

// TestEngineOpenTimeout verifies a hung backend resolves to degraded mode
func TestEngineOpenTimeout(t *testing.T) {
	sink := newFakeSink("slow")
	sink.block = make(chan struct{})

	cfg := DefaultConfig()
	cfg.OpenTimeout = 20 * time.Millisecond
	e := NewEngine(cfg, sink, nil)

	start := time.Now()
	err := e.Start()
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, e.IsDegraded())
	e.Stop()

	// Late success must be released
	close(sink.block)
	require.Eventually(t, func() bool {
		_, closes := sink.counts()
		return closes == 1
	}, time.Second, 5*time.Millisecond)
}

// TestEnginePlayReplaces verifies at most one voice is active and the newest wins
func TestEnginePlayReplaces(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	left := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	right := mustTone(t, tone.NewParams(600, 0.9), constant.SampleRate)

	require.True(t, e.Play(left, true, PanLeft))
	assert.Equal(t, 1, e.ActiveVoices())
	sink.pump(t, 64)

	require.True(t, e.Play(right, true, PanRight))
	assert.Equal(t, 1, e.ActiveVoices())

	frames := sink.pump(t, 8)
	for i, f := range frames {
		assert.Equal(t, 0.0, f[0], "left must be silent at frame %d", i)
		assert.InDelta(t, right.Samples[i], f[1], 1e-12, "frame %d", i)
	}

	played, _, rendered := e.GetStats()
	assert.Equal(t, uint64(2), played)
	assert.Equal(t, uint64(72), rendered)
}

// TestEngineLoop verifies looping voices wrap and one-shot voices drain
func TestEngineLoop(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	short := mustTone(t, tone.Params{FrequencyHz: 1000, Amplitude: 0.5, DurationSeconds: 0.01}, constant.SampleRate)
	require.Equal(t, 441, short.Len())

	require.True(t, e.Play(short, true, PanCenter))
	frames := sink.pump(t, 1000)
	assert.InDelta(t, frames[1][0], frames[442][0], 1e-12)
	assert.Equal(t, frames[5][0], frames[5][1])
	assert.Equal(t, 1, e.ActiveVoices())

	require.True(t, e.Play(short, false, PanCenter))
	frames = sink.pump(t, 500)
	assert.NotZero(t, frames[10][0])
	assert.Equal(t, 0.0, frames[450][0])
	sink.pump(t, 10)
	assert.Equal(t, 0, e.ActiveVoices())
}

func TestEngineUnroutedPlaysCenter(t *testing.T) {
	sink := newFakeSink("fake")
	cfg := DefaultConfig()
	cfg.RouteChannel = false
	e := NewEngine(cfg, sink, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	require.True(t, e.Play(buf, true, PanLeft))

	frames := sink.pump(t, 4)
	assert.Equal(t, frames[3][0], frames[3][1])
	assert.NotZero(t, frames[3][1])
}

func TestEngineMasterVolume(t *testing.T) {
	sink := newFakeSink("fake")
	cfg := DefaultConfig()
	cfg.MasterVolume = 0.5
	e := NewEngine(cfg, sink, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	buf := mustTone(t, tone.NewParams(500, 0.8), constant.SampleRate)
	require.True(t, e.Play(buf, true, PanCenter))

	frames := sink.pump(t, 16)
	assert.InDelta(t, buf.Samples[7]*0.5, frames[7][0], 1e-9)
}

func TestEngineResamplesForeignRate(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)
	require.NoError(t, e.Start())
	defer e.Stop()

	buf := mustTone(t, tone.NewParams(500, 0.9), 22050)
	require.True(t, e.Play(buf, true, PanCenter))
	frames := sink.pump(t, 256)

	var peak float64
	for _, f := range frames {
		if f[0] > peak {
			peak = f[0]
		}
	}
	assert.Greater(t, peak, 0.5)
}

// TestEngineObserverBufferStarted verifies notification after the first render
func TestEngineObserverBufferStarted(t *testing.T) {
	sink := newFakeSink("fake")
	obs := newRecordingObserver()
	e := NewEngine(DefaultConfig(), sink, nil)
	e.Observe(obs)
	require.NoError(t, e.Start())
	defer e.Stop()

	buf := mustTone(t, tone.NewParams(600, 0.9), constant.SampleRate)
	require.True(t, e.Play(buf, true, PanRight))

	select {
	case <-obs.started:
		t.Fatal("notified before render")
	default:
	}

	sink.pump(t, 32)
	sink.pump(t, 32)

	select {
	case info := <-obs.started:
		assert.Equal(t, 600.0, info.Params.FrequencyHz)
		assert.Equal(t, PanRight, info.Pan)
		assert.True(t, info.Loop)
	case <-time.After(time.Second):
		t.Fatal("buffer start not observed")
	}

	select {
	case <-obs.started:
		t.Fatal("buffer start reported twice")
	case <-time.After(20 * time.Millisecond):
	}
}

// TestEngineOutputLost verifies asynchronous sink failure degrades the engine
func TestEngineOutputLost(t *testing.T) {
	sink := newFakeSink("fake")
	obs := newRecordingObserver()
	e := NewEngine(DefaultConfig(), sink, nil)
	e.Observe(obs)
	require.NoError(t, e.Start())

	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	require.True(t, e.Play(buf, true, PanLeft))

	sink.errs <- ErrPipeClosed

	select {
	case err := <-obs.failed:
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	case <-time.After(time.Second):
		t.Fatal("output loss not observed")
	}
	assert.True(t, e.IsDegraded())
	assert.Equal(t, 0, e.ActiveVoices())
	assert.False(t, e.Play(buf, true, PanLeft))

	e.Stop()
	_, closes := sink.counts()
	assert.Equal(t, 1, closes, "lost output must still be released")
}

func TestEnginePlayBeforeStart(t *testing.T) {
	e := NewEngine(DefaultConfig(), newFakeSink("fake"), nil)
	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	assert.False(t, e.Play(buf, true, PanLeft))
	assert.False(t, e.Play(tone.Buffer{}, true, PanLeft))
}

// onceBlockingSink hangs on its first Open and treats Open on an open sink as a no-op,
// like the speaker and oto sinks
type onceBlockingSink struct {
	mu      sync.Mutex
	release chan struct{}
	first   bool
	open    bool
}

func (s *onceBlockingSink) Name() string { return "once" }

func (s *onceBlockingSink) Open(beep.Streamer) error {
	s.mu.Lock()
	first := !s.first
	s.first = true
	s.mu.Unlock()
	if first {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *onceBlockingSink) Errors() <-chan error { return nil }

func (s *onceBlockingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *onceBlockingSink) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// TestEngineRestartWhileOpenPending verifies a late Open from a timed-out start
// never closes the output of a later start
func TestEngineRestartWhileOpenPending(t *testing.T) {
	sink := &onceBlockingSink{release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.OpenTimeout = 20 * time.Millisecond
	e := NewEngine(cfg, sink, nil)

	require.ErrorIs(t, e.Start(), ErrEngineUnavailable)
	e.Stop()

	// First Open still hung: the restart degrades instead of sharing the sink
	err := e.Start()
	require.ErrorIs(t, err, ErrEngineUnavailable)
	assert.ErrorContains(t, err, "still opening")
	assert.True(t, e.IsDegraded())
	e.Stop()

	close(sink.release)
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		select {
		case <-e.pending:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.False(t, sink.isOpen(), "late open must be released")

	require.NoError(t, e.Start())
	defer e.Stop()
	assert.False(t, e.IsDegraded())
	assert.True(t, sink.isOpen())

	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	assert.True(t, e.Play(buf, true, PanLeft))
	assert.True(t, sink.isOpen())
}

// TestEngineDropsStaleBufferNotice verifies a notice queued after Stop is not
// delivered in the next run
func TestEngineDropsStaleBufferNotice(t *testing.T) {
	sink := newFakeSink("fake")
	e := NewEngine(DefaultConfig(), sink, nil)
	require.NoError(t, e.Start())
	e.Stop()

	// A render pull racing Stop leaves a notice behind
	buf := mustTone(t, tone.NewParams(500, 0.9), constant.SampleRate)
	e.deck.load(&voice{info: BufferInfo{Params: buf.Params}, stream: buildVoice(buf, true, PanLeft, constant.SampleRate, 1)})
	e.deck.Stream(make([][2]float64, 8))
	e.deck.clear()
	require.Len(t, e.deck.notify, 1)

	obs := newRecordingObserver()
	e.Observe(obs)
	require.NoError(t, e.Start())
	defer e.Stop()

	select {
	case info := <-obs.started:
		t.Fatalf("stale notice delivered: %+v", info)
	case <-time.After(50 * time.Millisecond):
	}
}
