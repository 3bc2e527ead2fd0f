// Package staircase sequences channel and level changes for the threshold test.
//
// The controller is driven by one goroutine at a time and holds no locks.
package staircase

import "errors"

// ErrInvalidStateTransition is returned when an event arrives out of order
var ErrInvalidStateTransition = errors.New("invalid state transition")

// Phase is the controller lifecycle state
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseTesting
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseTesting:
		return "testing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Channel is the test side
type Channel int

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	if c == Right {
		return "right"
	}
	return "left"
}

// Other returns the opposite channel
func (c Channel) Other() Channel {
	if c == Left {
		return Right
	}
	return Left
}

// State is a snapshot of the controller
type State struct {
	Phase         Phase
	Channel       Channel
	FrequencyHz   float64
	Amplitude     float64
	ResponseCount int
}

// Running reports whether tones are being presented
func (s State) Running() bool {
	return s.Phase == PhaseTesting
}

// Finished reports whether the test was stopped
func (s State) Finished() bool {
	return s.Phase == PhaseFinished
}

// Policy selects how the per-channel reset treats the periodic adjustment
type Policy int

const (
	// PolicyLiteral resets each channel to its fixed start level, discarding the adjustment
	PolicyLiteral Policy = iota
	// PolicyCarryAdjustment keeps a level per channel and restores the adjusted level on reset
	PolicyCarryAdjustment
)

func (p Policy) String() string {
	if p == PolicyCarryAdjustment {
		return "carry"
	}
	return "literal"
}
