package audio

import (
	"errors"
	"fmt"

	"github.com/gopxl/beep"
	"go.uber.org/zap"
)

// NewSink builds the sink named by cfg.Backend
func NewSink(cfg *Config, logger *zap.Logger) (Sink, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case SinkSpeaker:
		return newSpeakerSink(cfg.BufferDuration), nil
	case SinkOto:
		return newOtoSink(cfg.BufferDuration), nil
	case SinkPipe:
		return newPipeSink(logger), nil
	case SinkNone:
		return nullSink{}, nil
	case SinkAuto, "":
		return &fallbackSink{
			sinks:  []Sink{newSpeakerSink(cfg.BufferDuration), newPipeSink(logger)},
			logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Backend)
	}
}

// nullSink never acquires an output; the engine always runs degraded
type nullSink struct{}

func (nullSink) Name() string { return SinkNone }
func (nullSink) Open(beep.Streamer) error { return ErrNoAudioBackend }
func (nullSink) Errors() <-chan error { return nil }
func (nullSink) Close() error { return nil }

// fallbackSink opens the first sink that succeeds
type fallbackSink struct {
	sinks  []Sink
	active Sink
	logger *zap.Logger
}

func (f *fallbackSink) Name() string {
	if f.active != nil {
		return SinkAuto + ":" + f.active.Name()
	}
	return SinkAuto
}

func (f *fallbackSink) Open(src beep.Streamer) error {
	if f.active != nil {
		return nil
	}

	var errs []error
	for _, s := range f.sinks {
		if err := s.Open(src); err != nil {
			f.logger.Debug("audio sink unavailable", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		f.active = s
		return nil
	}
	return errors.Join(errs...)
}

func (f *fallbackSink) Errors() <-chan error {
	if f.active == nil {
		return nil
	}
	return f.active.Errors()
}

func (f *fallbackSink) Close() error {
	if f.active == nil {
		return nil
	}
	err := f.active.Close()
	f.active = nil
	return err
}
