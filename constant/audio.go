package constant

import "time"

// Audio Hardware Settings
const (
	SampleRate         = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Engine Timing
const (
	// AudioBufferDuration determines latency and pipe writer tick rate
	AudioBufferDuration = 20 * time.Millisecond

	// AudioBufferSamples is frames per writer tick at 44.1kHz
	AudioBufferSamples = (SampleRate * 20) / 1000 // 882

	// SpeakerBufferDuration is the beep speaker buffer length
	SpeakerBufferDuration = 100 * time.Millisecond

	// SinkOpenTimeout bounds backend acquisition before falling back to silent mode
	SinkOpenTimeout = 2 * time.Second

	// ObserverQueueSize is the capacity of the engine notification channel
	ObserverQueueSize = 16
)
