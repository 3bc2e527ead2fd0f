// Package session runs one hearing-threshold test: it turns begin, response
// and stop events into staircase transitions and hands each resulting tone to
// the playback engine.
//
// A Session is driven from a single goroutine. Only the engine observer
// callbacks arrive on another goroutine, and they touch atomics only.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lixenwraith/audiometer/audio"
	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/staircase"
	"github.com/lixenwraith/audiometer/status"
	"github.com/lixenwraith/audiometer/tone"
)

// Player is the playback surface the session drives; *audio.Engine implements it
type Player interface {
	Start() error
	Stop()
	Play(buf tone.Buffer, loop bool, pan audio.Pan) bool
	IsDegraded() bool
	Observe(o audio.Observer)
}

// Session orchestrates controller, synthesizer and player
type Session struct {
	ctrl    *staircase.Controller
	player  Player
	cache   *tone.Cache
	logger  *zap.Logger
	metrics *status.Registry
	now     func() time.Time

	degraded atomic.Bool

	// Run record, sequencing goroutine only
	id            uuid.UUID
	startedAt     time.Time
	stoppedAt     time.Time
	responses     int
	presentations []Presentation

	// Cached metric pointers
	mResponses     *atomic.Int64
	mPresentations *atomic.Int64
	mRejected      *atomic.Int64
	mSkipped       *atomic.Int64
	mStarted       *atomic.Int64
	mCached        *atomic.Int64
	mDegraded      *atomic.Bool
	mFreq          *status.AtomicFloat
	mAmp           *atomic.Int64
	mChannel       *status.AtomicString
	mPhase         *status.AtomicString
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger; the default discards
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics publishes counters to r instead of a private registry
func WithMetrics(r *status.Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithPolicy selects the staircase policy
func WithPolicy(p staircase.Policy) Option {
	return func(s *Session) {
		s.ctrl = staircase.NewController(p)
	}
}

// WithClock overrides time.Now for run timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a session over player and registers as its observer
// The session owns the player's lifecycle from here on; release it with Close
func New(player Player, opts ...Option) *Session {
	s := &Session{
		ctrl:    staircase.NewController(staircase.PolicyLiteral),
		player:  player,
		cache:   tone.NewCache(),
		logger:  zap.NewNop(),
		metrics: status.NewRegistry(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session")

	m := s.metrics
	s.mResponses = m.Ints.Get("session.responses")
	s.mPresentations = m.Ints.Get("session.presentations")
	s.mRejected = m.Ints.Get("session.rejected")
	s.mSkipped = m.Ints.Get("session.silent_plays")
	s.mStarted = m.Ints.Get("engine.buffers_started")
	s.mCached = m.Ints.Get("tone.cached")
	s.mDegraded = m.Bools.Get("engine.degraded")
	s.mFreq = m.Floats.Get("tone.freq_hz")
	s.mAmp = m.Ints.Get("tone.amp_pct")
	s.mChannel = m.Strings.Get("tone.channel")
	s.mPhase = m.Strings.Get("session.phase")
	s.mPhase.Store(staircase.PhaseNotStarted.String())

	// Both channel start levels are presented first; synthesize them up front
	if err := s.cache.Preload(constant.SampleRate,
		tone.NewParams(constant.LeftFrequencyHz, constant.StartAmplitude),
		tone.NewParams(constant.RightFrequencyHz, constant.StartAmplitude),
	); err != nil {
		s.logger.Error("tone preload failed", zap.Error(err))
	}
	s.mCached.Store(int64(s.cache.Len()))

	player.Observe(s)
	return s
}

// ID returns the current run id; zero before the first Begin
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Begin starts a run: acquire the output, enter testing, present the first tone
// Output failure is not an error here; the run continues silently
func (s *Session) Begin() error {
	params, err := s.ctrl.Begin()
	if err != nil {
		s.reject("begin", err)
		return err
	}

	s.id = uuid.New()
	s.startedAt = s.now()
	s.stoppedAt = time.Time{}
	s.responses = 0
	s.presentations = s.presentations[:0]
	s.mResponses.Store(0)
	s.mPresentations.Store(0)

	s.startPlayer()
	s.logger.Info("test started",
		zap.Stringer("run", s.id),
		zap.Stringer("policy", s.ctrl.Policy()),
		zap.Bool("degraded", s.degraded.Load()))

	return s.present(params)
}

// startPlayer acquires the output, falling back to degraded mode
func (s *Session) startPlayer() {
	s.degraded.Store(false)

	err := s.player.Start()
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrEngineRunning):
		s.logger.Debug("player already running")
	default:
		s.degraded.Store(true)
		s.logger.Warn("audio unavailable, continuing without sound", zap.Error(err))
	}
	s.mDegraded.Store(s.isDegraded())
}

// RegisterResponse advances the staircase by one response and presents the next tone
// Out-of-order calls return an error wrapping staircase.ErrInvalidStateTransition
// and leave the state unchanged
func (s *Session) RegisterResponse() error {
	params, err := s.ctrl.Advance()
	if err != nil {
		s.reject("response", err)
		return err
	}

	s.responses++
	s.mResponses.Add(1)
	return s.present(params)
}

// Stop finishes the run and releases the output; repeated calls are no-ops
func (s *Session) Stop() {
	wasRunning := s.ctrl.State().Running()

	s.ctrl.Stop()
	s.player.Stop()
	s.mPhase.Store(staircase.PhaseFinished.String())

	if wasRunning {
		s.stoppedAt = s.now()
		s.logger.Info("test stopped",
			zap.Stringer("run", s.id),
			zap.Int("responses", s.responses),
			zap.Int("presentations", len(s.presentations)),
			zap.Duration("elapsed", s.stoppedAt.Sub(s.startedAt)))
	}
}

// Close stops the run and detaches from the player
func (s *Session) Close() error {
	s.Stop()
	s.player.Observe(nil)
	return nil
}

// present synthesizes params and replaces the looping tone
func (s *Session) present(p tone.Params) error {
	buf, err := s.cache.Get(p, constant.SampleRate)
	if err != nil {
		s.logger.Error("tone synthesis failed", zap.Error(err))
		return fmt.Errorf("present tone: %w", err)
	}

	st := s.ctrl.State()
	s.presentations = append(s.presentations, Presentation{
		Channel:          st.Channel.String(),
		FrequencyHz:      p.FrequencyHz,
		AmplitudePercent: p.AmplitudePercent(),
		At:               s.now(),
	})

	if !s.player.Play(buf, true, panFor(st.Channel)) {
		s.mSkipped.Add(1)
	}

	s.mPresentations.Add(1)
	s.mCached.Store(int64(s.cache.Len()))
	s.mFreq.Set(p.FrequencyHz)
	s.mAmp.Store(int64(p.AmplitudePercent()))
	s.mChannel.Store(st.Channel.String())
	s.mPhase.Store(st.Phase.String())
	s.mDegraded.Store(s.isDegraded())

	s.logger.Debug("tone presented",
		zap.String("channel", st.Channel.String()),
		zap.Float64("freq_hz", p.FrequencyHz),
		zap.Float64("amplitude", p.Amplitude),
		zap.Int("response_count", st.ResponseCount))
	return nil
}

// reject reports an out-of-order event; the event is dropped
func (s *Session) reject(event string, err error) {
	s.mRejected.Add(1)
	s.logger.Warn("event rejected",
		zap.String("event", event),
		zap.Stringer("phase", s.ctrl.State().Phase),
		zap.Error(err))
}

func (s *Session) isDegraded() bool {
	return s.degraded.Load() || s.player.IsDegraded()
}

// OnBufferStarted implements audio.Observer
func (s *Session) OnBufferStarted(audio.BufferInfo) {
	s.mStarted.Add(1)
}

// OnEngineFailed implements audio.Observer
func (s *Session) OnEngineFailed(err error) {
	s.degraded.Store(true)
	s.mDegraded.Store(true)
	s.logger.Warn("audio engine failed", zap.Error(err))
}

func panFor(ch staircase.Channel) audio.Pan {
	if ch == staircase.Right {
		return audio.PanRight
	}
	return audio.PanLeft
}
