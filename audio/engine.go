package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"go.uber.org/zap"

	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/tone"
)

// Engine owns one audio output and plays at most one looping buffer at a time
//
// Start, Stop and Play are called from the sequencing goroutine and never wait
// on the render thread. Failure to acquire the output is not fatal: the engine
// runs in degraded (silent) mode and Play becomes a no-op.
type Engine struct {
	config *Config
	sink   Sink
	deck   *deck
	logger *zap.Logger

	running  atomic.Bool
	degraded atomic.Bool
	opened   bool // sink acquired; guarded by mu
	// pending is closed once a timed-out Open has resolved and been released; guarded by mu
	pending chan struct{}

	mu       sync.Mutex // Protects lifecycle and observer
	observer Observer
	stopChan chan struct{}
	failures chan error
	wg       sync.WaitGroup

	played  atomic.Uint64
	skipped atomic.Uint64
}

// NewEngine creates an engine over sink; a nil sink always degrades
func NewEngine(cfg *Config, sink Sink, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config: cfg,
		sink:   sink,
		deck:   newDeck(),
		logger: logger.Named("audio"),
	}
}

// Observe installs the notification port; nil detaches
func (e *Engine) Observe(o Observer) {
	e.mu.Lock()
	e.observer = o
	e.mu.Unlock()
}

// Start acquires the output
// On failure the engine still runs, degraded, and the returned error wraps ErrEngineUnavailable
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return ErrEngineRunning
	}

	e.deck.clear()
	e.deck.drain()
	e.degraded.Store(false)
	e.opened = false
	e.stopChan = make(chan struct{})
	e.failures = make(chan error, 1)

	var openErr error
	if e.sink == nil {
		openErr = ErrNoAudioBackend
	} else {
		openErr = e.openSink()
	}

	var sinkErrs <-chan error
	if openErr == nil {
		e.opened = true
		sinkErrs = e.sink.Errors()
	}

	e.wg.Add(1)
	go e.dispatch(e.stopChan, sinkErrs)
	e.running.Store(true)

	if openErr != nil {
		err := fmt.Errorf("%w: %v", ErrEngineUnavailable, openErr)
		e.degraded.Store(true)
		e.failures <- err
		e.logger.Warn("audio output unavailable, continuing silent", zap.Error(openErr))
		return err
	}

	e.logger.Info("audio output started", zap.String("sink", e.sink.Name()))
	return nil
}

// openSink runs Open bounded by OpenTimeout; a late success is released
// While a timed-out Open is unresolved the sink is not touched again, so the
// release can never close an output acquired by a later Start
func (e *Engine) openSink() error {
	sink := e.sink
	if e.pending != nil {
		select {
		case <-e.pending:
			e.pending = nil
		default:
			return fmt.Errorf("sink %s still opening from a previous start", sink.Name())
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- sink.Open(e.deck)
	}()

	timer := time.NewTimer(e.config.OpenTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		resolved := make(chan struct{})
		e.pending = resolved
		go func() {
			defer close(resolved)
			if err := <-done; err == nil {
				_ = sink.Close()
			}
		}()
		return fmt.Errorf("sink %s did not open within %s", sink.Name(), e.config.OpenTimeout)
	}
}

// dispatch forwards deck and sink events to the observer
func (e *Engine) dispatch(stop <-chan struct{}, sinkErrs <-chan error) {
	defer e.wg.Done()

	for {
		select {
		case <-stop:
			return

		case info := <-e.deck.notify:
			if o := e.currentObserver(); o != nil {
				o.OnBufferStarted(info)
			}

		case err := <-e.failures:
			if o := e.currentObserver(); o != nil {
				o.OnEngineFailed(err)
			}

		case err, ok := <-sinkErrs:
			if !ok {
				sinkErrs = nil
				continue
			}
			e.degraded.Store(true)
			e.deck.clear()
			wrapped := fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
			e.logger.Warn("audio output lost, continuing silent", zap.Error(err))
			if o := e.currentObserver(); o != nil {
				o.OnEngineFailed(wrapped)
			}
		}
	}
}

func (e *Engine) currentObserver() Observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observer
}

// Stop silences the deck and releases the output; repeated calls are no-ops
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running.CompareAndSwap(true, false) {
		e.mu.Unlock()
		return
	}

	e.deck.clear()
	close(e.stopChan)

	if e.opened {
		if err := e.sink.Close(); err != nil {
			e.logger.Warn("audio output close failed", zap.Error(err))
		}
		e.opened = false
	}
	e.mu.Unlock()

	// Dispatch may be inside an observer callback that takes mu
	e.wg.Wait()
	e.logger.Debug("audio output stopped")
}

// Play replaces whatever is on the deck with buf
// Returns false when stopped or degraded; the request is dropped silently
func (e *Engine) Play(buf tone.Buffer, loop bool, pan Pan) bool {
	if !e.running.Load() || e.degraded.Load() || buf.Len() == 0 {
		e.skipped.Add(1)
		return false
	}

	if !e.config.RouteChannel {
		pan = PanCenter
	}

	v := &voice{
		info:   BufferInfo{Params: buf.Params, Pan: pan, Loop: loop},
		stream: buildVoice(buf, loop, pan, constant.SampleRate, e.config.MasterVolume),
	}
	if e.deck.load(v) {
		e.logger.Debug("voice replaced",
			zap.Float64("freq_hz", buf.Params.FrequencyHz),
			zap.String("pan", pan.String()))
	}
	e.played.Add(1)
	return true
}

// ActiveVoices returns how many buffers are loaded (0 or 1)
func (e *Engine) ActiveVoices() int {
	return e.deck.active()
}

// IsRunning returns true if started, including degraded mode
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// IsDegraded returns true if output could not be acquired or was lost
func (e *Engine) IsDegraded() bool {
	return e.degraded.Load()
}

// SinkName returns the configured sink name
func (e *Engine) SinkName() string {
	if e.sink == nil {
		return SinkNone
	}
	return e.sink.Name()
}

// GetStats returns played, skipped and rendered frame counts
func (e *Engine) GetStats() (played, skipped, frames uint64) {
	return e.played.Load(), e.skipped.Load(), e.deck.frames.Load()
}

// source exposes the deck for direct rendering in tests
func (e *Engine) source() beep.Streamer {
	return e.deck
}
