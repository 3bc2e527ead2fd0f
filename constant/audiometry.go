package constant

// Tone presentation
const (
	// ToneDurationSeconds is the length of one synthesized tone buffer, looped while presented
	ToneDurationSeconds = 2.0

	// MaxAmplitude is the upper amplitude clamp
	MaxAmplitude = 1.0
	// MinAmplitude is the lower amplitude clamp
	MinAmplitude = 0.0
)

// Staircase levels
const (
	LeftFrequencyHz  = 500.0
	RightFrequencyHz = 600.0
	StartAmplitude   = 0.9

	// MaxFrequencyHz caps the staircase frequency step
	MaxFrequencyHz = 5000.0

	// StepFrequencyHz and StepAmplitude are applied every StepResponses responses
	StepFrequencyHz = 500.0
	StepAmplitude   = 0.1
	StepResponses   = 3
)

// Prompts shown alongside the display state
const (
	MessageIdle     = "Please put on your headphones"
	MessageTesting  = "Make sure you are in a quiet environment"
	MessageFinished = "Test complete"
)
