package session

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Presentation records one tone handed to the player
type Presentation struct {
	Channel          string    `yaml:"channel"`
	FrequencyHz      float64   `yaml:"frequency_hz"`
	AmplitudePercent int       `yaml:"amplitude_percent"`
	At               time.Time `yaml:"at"`
}

// Summary is the run record for reporting
type Summary struct {
	ID             string         `yaml:"id"`
	Policy         string         `yaml:"policy"`
	StartedAt      time.Time      `yaml:"started_at,omitempty"`
	StoppedAt      time.Time      `yaml:"stopped_at,omitempty"`
	Responses      int            `yaml:"responses"`
	EngineDegraded bool           `yaml:"engine_degraded"`
	Presentations  []Presentation `yaml:"presentations"`
}

// Summary copies the current run record
func (s *Session) Summary() Summary {
	id := ""
	if s.startedAt != (time.Time{}) {
		id = s.id.String()
	}
	return Summary{
		ID:             id,
		Policy:         s.ctrl.Policy().String(),
		StartedAt:      s.startedAt,
		StoppedAt:      s.stoppedAt,
		Responses:      s.responses,
		EngineDegraded: s.isDegraded(),
		Presentations:  append([]Presentation(nil), s.presentations...),
	}
}

// WriteYAML encodes the summary as a YAML document
func (sum Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return enc.Close()
}
