package staircase

import (
	"fmt"
	"math"

	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/tone"
)

// level is a frequency/amplitude pair
type level struct {
	freq float64
	amp  float64
}

// Controller is the staircase state machine
type Controller struct {
	policy Policy
	state  State

	// Per-channel levels, only consulted under PolicyCarryAdjustment
	levels [2]level
}

// NewController creates a controller in PhaseNotStarted
func NewController(policy Policy) *Controller {
	return &Controller{policy: policy}
}

// Policy returns the configured policy
func (c *Controller) Policy() Policy {
	return c.policy
}

// State returns a copy of the current state
func (c *Controller) State() State {
	return c.state
}

// Params returns the tone for the current state
func (c *Controller) Params() tone.Params {
	return tone.NewParams(c.state.FrequencyHz, c.state.Amplitude)
}

// Begin enters PhaseTesting on the left channel at the start level
// Restarting from PhaseFinished is allowed; Begin while testing is not
func (c *Controller) Begin() (tone.Params, error) {
	if c.state.Phase == PhaseTesting {
		return tone.Params{}, fmt.Errorf("%w: begin while %s", ErrInvalidStateTransition, c.state.Phase)
	}

	c.levels = [2]level{
		Left:  {freq: constant.LeftFrequencyHz, amp: constant.StartAmplitude},
		Right: {freq: constant.RightFrequencyHz, amp: constant.StartAmplitude},
	}
	c.state = State{
		Phase:         PhaseTesting,
		Channel:       Left,
		FrequencyHz:   constant.LeftFrequencyHz,
		Amplitude:     constant.StartAmplitude,
		ResponseCount: 0,
	}
	return c.Params(), nil
}

// Advance applies one response event
//
// Order: count the response; every StepResponses responses raise amplitude
// and frequency (clamped) and reset the count; switch channel; load the new
// channel's level. Under PolicyLiteral the load uses fixed start levels, so
// the raise never reaches the emitted tone.
func (c *Controller) Advance() (tone.Params, error) {
	if c.state.Phase != PhaseTesting {
		return tone.Params{}, fmt.Errorf("%w: advance while %s", ErrInvalidStateTransition, c.state.Phase)
	}

	s := &c.state
	s.ResponseCount++

	if s.ResponseCount >= constant.StepResponses {
		s.Amplitude = clampAmplitude(s.Amplitude + constant.StepAmplitude)
		s.FrequencyHz = math.Min(s.FrequencyHz+constant.StepFrequencyHz, constant.MaxFrequencyHz)
		s.ResponseCount = 0

		if c.policy == PolicyCarryAdjustment {
			for i := range c.levels {
				c.levels[i].amp = clampAmplitude(c.levels[i].amp + constant.StepAmplitude)
				c.levels[i].freq = math.Min(c.levels[i].freq+constant.StepFrequencyHz, constant.MaxFrequencyHz)
			}
		}
	}

	s.Channel = s.Channel.Other()

	switch c.policy {
	case PolicyCarryAdjustment:
		s.FrequencyHz = c.levels[s.Channel].freq
		s.Amplitude = c.levels[s.Channel].amp
	default:
		if s.Channel == Left {
			s.FrequencyHz = constant.LeftFrequencyHz
		} else {
			s.FrequencyHz = constant.RightFrequencyHz
		}
		s.Amplitude = constant.StartAmplitude
	}

	return c.Params(), nil
}

// Stop moves to PhaseFinished from any phase; repeated calls are no-ops
func (c *Controller) Stop() {
	c.state.Phase = PhaseFinished
}

func clampAmplitude(a float64) float64 {
	if a < constant.MinAmplitude {
		return constant.MinAmplitude
	}
	if a > constant.MaxAmplitude {
		return constant.MaxAmplitude
	}
	return a
}
