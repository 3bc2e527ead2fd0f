package session

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/audiometer/audio"
	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/staircase"
	"github.com/lixenwraith/audiometer/status"
)

type level struct {
	channel string
	freq    int
	amp     int
}

func levelOf(d DisplayState) level {
	return level{channel: d.Channel, freq: d.FrequencyHz, amp: d.AmplitudePercent}
}

func TestSessionLiteralTrace(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	require.NoError(t, s.Begin())
	got := []level{levelOf(s.DisplayState())}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RegisterResponse())
		got = append(got, levelOf(s.DisplayState()))
	}

	want := []level{
		{"left", 500, 90},
		{"right", 600, 90},
		{"left", 500, 90},
		{"right", 600, 90},
	}
	assert.Equal(t, want, got)
}

func TestSessionPlaysEachPresentation(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	require.NoError(t, s.Begin())
	require.NoError(t, s.RegisterResponse())

	require.Len(t, p.plays, 2)
	assert.Equal(t, 1, p.starts)

	first, second := p.plays[0], p.plays[1]
	assert.True(t, first.loop)
	assert.Equal(t, audio.PanLeft, first.pan)
	assert.Equal(t, float64(constant.LeftFrequencyHz), first.params.FrequencyHz)
	assert.Equal(t, constant.StartAmplitude, first.params.Amplitude)
	assert.Equal(t, constant.ToneDurationSeconds, first.params.DurationSeconds)

	assert.True(t, second.loop)
	assert.Equal(t, audio.PanRight, second.pan)
	assert.Equal(t, float64(constant.RightFrequencyHz), second.params.FrequencyHz)
}

func TestSessionMessages(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	d := s.DisplayState()
	assert.Equal(t, constant.MessageIdle, d.Message)
	assert.False(t, d.Running)
	assert.False(t, d.Finished)

	require.NoError(t, s.Begin())
	d = s.DisplayState()
	assert.Equal(t, constant.MessageTesting, d.Message)
	assert.True(t, d.Running)

	s.Stop()
	d = s.DisplayState()
	assert.Equal(t, constant.MessageFinished, d.Message)
	assert.False(t, d.Running)
	assert.True(t, d.Finished)
}

func TestSessionDegradedBegin(t *testing.T) {
	p := &fakePlayer{startErr: fmt.Errorf("%w: no device", audio.ErrEngineUnavailable)}
	reg := status.NewRegistry()
	s := New(p, WithMetrics(reg))
	defer s.Close()

	require.NoError(t, s.Begin())

	d := s.DisplayState()
	assert.True(t, d.Running)
	assert.True(t, d.EngineDegraded)
	assert.Equal(t, level{"left", 500, 90}, levelOf(d))

	require.NoError(t, s.RegisterResponse())
	assert.Equal(t, level{"right", 600, 90}, levelOf(s.DisplayState()))
	assert.Empty(t, p.plays)
	assert.Equal(t, int64(2), reg.Ints.Get("session.silent_plays").Load())
	assert.True(t, reg.Bools.Get("engine.degraded").Load())
}

func TestSessionResponseAfterStop(t *testing.T) {
	p := &fakePlayer{}
	reg := status.NewRegistry()
	s := New(p, WithMetrics(reg))
	defer s.Close()

	require.NoError(t, s.Begin())
	require.NoError(t, s.RegisterResponse())
	s.Stop()

	before := s.DisplayState()
	plays := len(p.plays)

	err := s.RegisterResponse()
	require.Error(t, err)
	assert.True(t, errors.Is(err, staircase.ErrInvalidStateTransition))
	assert.Equal(t, before, s.DisplayState())
	assert.Len(t, p.plays, plays)
	assert.Equal(t, int64(1), reg.Ints.Get("session.rejected").Load())
}

func TestSessionResponseBeforeBegin(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	err := s.RegisterResponse()
	assert.ErrorIs(t, err, staircase.ErrInvalidStateTransition)
	assert.Empty(t, p.plays)
	assert.Equal(t, 0, p.starts)
}

func TestSessionBeginWhileRunning(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	require.NoError(t, s.Begin())
	require.NoError(t, s.RegisterResponse())

	err := s.Begin()
	assert.ErrorIs(t, err, staircase.ErrInvalidStateTransition)
	assert.Equal(t, 1, p.starts)
	assert.Len(t, p.plays, 2)
	assert.Equal(t, "right", s.DisplayState().Channel)
}

func TestSessionStopIdempotent(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)

	require.NoError(t, s.Begin())
	s.Stop()
	s.Stop()
	require.NoError(t, s.Close())

	d := s.DisplayState()
	assert.True(t, d.Finished)
	assert.False(t, d.Running)
	assert.False(t, p.running)
	assert.Nil(t, p.observer)
}

func TestSessionRestart(t *testing.T) {
	p := &fakePlayer{}
	s := New(p)
	defer s.Close()

	require.NoError(t, s.Begin())
	first := s.ID()
	require.NoError(t, s.RegisterResponse())
	s.Stop()

	require.NoError(t, s.Begin())
	assert.NotEqual(t, first, s.ID())
	assert.Equal(t, 2, p.starts)
	assert.Equal(t, level{"left", 500, 90}, levelOf(s.DisplayState()))
	assert.Equal(t, 0, s.Summary().Responses)
	assert.Len(t, s.Summary().Presentations, 1)
}

func TestSessionObserverCallbacks(t *testing.T) {
	p := &fakePlayer{}
	reg := status.NewRegistry()
	s := New(p, WithMetrics(reg))
	defer s.Close()

	require.Same(t, s, p.observer)
	require.NoError(t, s.Begin())
	assert.False(t, s.DisplayState().EngineDegraded)

	p.observer.OnBufferStarted(audio.BufferInfo{Pan: audio.PanLeft, Loop: true})
	assert.Equal(t, int64(1), reg.Ints.Get("engine.buffers_started").Load())

	p.observer.OnEngineFailed(audio.ErrPipeClosed)
	assert.True(t, s.DisplayState().EngineDegraded)
	assert.True(t, reg.Bools.Get("engine.degraded").Load())

	// Responses keep advancing while degraded
	require.NoError(t, s.RegisterResponse())
	assert.Equal(t, "right", s.DisplayState().Channel)
}

func TestSessionCarryPolicy(t *testing.T) {
	p := &fakePlayer{}
	s := New(p, WithPolicy(staircase.PolicyCarryAdjustment))
	defer s.Close()

	require.NoError(t, s.Begin())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RegisterResponse())
	}
	assert.Equal(t, level{"right", 1100, 100}, levelOf(s.DisplayState()))
	assert.Equal(t, "carry", s.Summary().Policy)
}

func TestSessionMetrics(t *testing.T) {
	reg := status.NewRegistry()
	p := &fakePlayer{}
	s := New(p, WithMetrics(reg))
	defer s.Close()

	assert.Equal(t, "not_started", reg.Strings.Get("session.phase").Load())

	require.NoError(t, s.Begin())
	require.NoError(t, s.RegisterResponse())

	snap := reg.Snapshot()
	assert.Equal(t, "1", snap["session.responses"])
	assert.Equal(t, "2", snap["session.presentations"])
	assert.Equal(t, "600.0", snap["tone.freq_hz"])
	assert.Equal(t, "90", snap["tone.amp_pct"])
	assert.Equal(t, "right", snap["tone.channel"])
	assert.Equal(t, "testing", snap["session.phase"])
	assert.Equal(t, "2", snap["tone.cached"])
}

func TestSessionSummary(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	p := &fakePlayer{}
	s := New(p, WithClock(now))
	defer s.Close()

	assert.Empty(t, s.Summary().ID)

	require.NoError(t, s.Begin())
	require.NoError(t, s.RegisterResponse())
	require.NoError(t, s.RegisterResponse())
	s.Stop()

	sum := s.Summary()
	assert.Equal(t, s.ID().String(), sum.ID)
	assert.Equal(t, "literal", sum.Policy)
	assert.Equal(t, 2, sum.Responses)
	assert.False(t, sum.EngineDegraded)
	assert.True(t, sum.StoppedAt.After(sum.StartedAt))
	require.Len(t, sum.Presentations, 3)
	assert.Equal(t, "left", sum.Presentations[0].Channel)
	assert.Equal(t, "right", sum.Presentations[1].Channel)
	assert.Equal(t, 600.0, sum.Presentations[1].FrequencyHz)
	assert.Equal(t, 90, sum.Presentations[2].AmplitudePercent)

	var out bytes.Buffer
	require.NoError(t, sum.WriteYAML(&out))

	var decoded Summary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, sum.ID, decoded.ID)
	assert.Equal(t, sum.Responses, decoded.Responses)
	assert.Len(t, decoded.Presentations, 3)
	assert.Contains(t, out.String(), "frequency_hz: 600")
}

func TestSessionOverDegradedEngine(t *testing.T) {
	eng := audio.NewEngine(audio.DefaultConfig(), nil, nil)
	s := New(eng)

	require.NoError(t, s.Begin())
	assert.True(t, s.DisplayState().EngineDegraded)
	require.NoError(t, s.RegisterResponse())
	assert.Equal(t, 0, eng.ActiveVoices())

	require.NoError(t, s.Close())
	assert.False(t, eng.IsRunning())
}
