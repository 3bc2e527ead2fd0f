// Package tone synthesizes pure sine tones for threshold presentation.
package tone

import (
	"errors"
	"fmt"
	"math"

	"github.com/lixenwraith/audiometer/constant"
)

// ErrInvalidParameter is returned for non-positive frequency, duration or sample rate
var ErrInvalidParameter = errors.New("invalid tone parameter")

// Params describes one presented tone
type Params struct {
	FrequencyHz     float64
	Amplitude       float64
	DurationSeconds float64
}

// NewParams returns params with the standard presentation duration
func NewParams(freqHz, amplitude float64) Params {
	return Params{
		FrequencyHz:     freqHz,
		Amplitude:       amplitude,
		DurationSeconds: constant.ToneDurationSeconds,
	}
}

// AmplitudePercent returns amplitude as a rounded percentage for display
func (p Params) AmplitudePercent() int {
	return int(math.Round(p.Amplitude * 100))
}

// Buffer is a mono float64 sample sequence at unity gain scaled by Params.Amplitude
// Samples must not be mutated after synthesis; buffers are shared through Cache
type Buffer struct {
	Params     Params
	SampleRate int
	Samples    []float64
}

// Len returns the sample count
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Validate checks the fields Synthesize depends on
func (p Params) Validate(sampleRate int) error {
	// Negated comparisons also reject NaN
	if !(p.FrequencyHz > 0) {
		return fmt.Errorf("%w: frequency %v", ErrInvalidParameter, p.FrequencyHz)
	}
	if !(p.DurationSeconds > 0) {
		return fmt.Errorf("%w: duration %v", ErrInvalidParameter, p.DurationSeconds)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sampleRate)
	}
	return nil
}

// Synthesize renders DurationSeconds*sampleRate samples of
// sin(2π·f·i/sampleRate)·amplitude
func Synthesize(p Params, sampleRate int) (Buffer, error) {
	if err := p.Validate(sampleRate); err != nil {
		return Buffer{}, err
	}

	n := int(p.DurationSeconds * float64(sampleRate))
	samples := make([]float64, n)
	rate := float64(sampleRate)
	for i := range samples {
		samples[i] = math.Sin(2*math.Pi*p.FrequencyHz*float64(i)/rate) * p.Amplitude
	}

	return Buffer{
		Params:     p,
		SampleRate: sampleRate,
		Samples:    samples,
	}, nil
}
