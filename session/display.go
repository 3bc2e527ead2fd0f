package session

import (
	"math"

	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/staircase"
)

// DisplayState is the read-only snapshot handed to the presentation layer
type DisplayState struct {
	Channel          string
	FrequencyHz      int
	AmplitudePercent int
	Running          bool
	Finished         bool
	EngineDegraded   bool
	Message          string
}

// DisplayState snapshots the current channel and level for presentation
func (s *Session) DisplayState() DisplayState {
	st := s.ctrl.State()
	return DisplayState{
		Channel:          st.Channel.String(),
		FrequencyHz:      int(math.Round(st.FrequencyHz)),
		AmplitudePercent: int(math.Round(st.Amplitude * 100)),
		Running:          st.Running(),
		Finished:         st.Finished(),
		EngineDegraded:   s.isDegraded(),
		Message:          messageFor(st.Phase),
	}
}

func messageFor(p staircase.Phase) string {
	switch p {
	case staircase.PhaseTesting:
		return constant.MessageTesting
	case staircase.PhaseFinished:
		return constant.MessageFinished
	default:
		return constant.MessageIdle
	}
}
