package audio

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/lixenwraith/audiometer/constant"
)

// backendCandidates lists pipe backends in priority order
// Priority: pacat > pw-cat > aplay > play (sox) > ffplay
func backendCandidates() []BackendConfig {
	rate := strconv.Itoa(constant.SampleRate)
	channels := strconv.Itoa(constant.AudioChannels)

	return []BackendConfig{
		// PulseAudio/PipeWire (works on Linux and FreeBSD with pulse installed)
		{
			Type: BackendPulse,
			Name: "pacat",
			Args: []string{
				"--raw",
				"--format=s16le",
				"--rate=" + rate,
				"--channels=" + channels,
				"--latency-msec=50",
				"--playback",
			},
		},
		// PipeWire native
		{
			Type: BackendPipeWire,
			Name: "pw-cat",
			Args: []string{
				"--playback",
				"--format=s16",
				"--rate=" + rate,
				"--channels=" + channels,
				"--latency=50ms",
				"-",
			},
		},
		// ALSA (Linux)
		{
			Type: BackendALSA,
			Name: "aplay",
			Args: []string{
				"-t", "raw",
				"-f", "S16_LE",
				"-r", rate,
				"-c", channels,
				"-q",
			},
		},
		// SoX (cross-platform)
		{
			Type: BackendSoX,
			Name: "play",
			Args: []string{
				"-t", "raw",
				"-e", "signed",
				"-b", "16",
				"-c", channels,
				"-r", rate,
				"-",
				"-d",
				"-q",
			},
		},
		// FFplay (heavyweight fallback)
		{
			Type: BackendFFplay,
			Name: "ffplay",
			Args: []string{
				"-nodisp",
				"-autoexit",
				"-f", "s16le",
				"-ac", channels,
				"-ar", rate,
				"-probesize", "32",
				"-analyzeduration", "0",
				"-i", "pipe:0",
				"-loglevel", "quiet",
			},
		},
	}
}

// AvailableBackends returns every pipe backend found on this host
func AvailableBackends() []BackendConfig {
	var found []BackendConfig
	for _, c := range backendCandidates() {
		if path, err := exec.LookPath(c.Name); err == nil {
			c.Path = path
			found = append(found, c)
		}
	}

	// FreeBSD OSS (direct device write, no exec needed)
	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			found = append(found, BackendConfig{
				Type: BackendOSS,
				Name: "oss",
				Path: "/dev/dsp",
			})
		}
	}
	return found
}

// DetectBackend returns the highest priority available pipe backend
func DetectBackend() (*BackendConfig, error) {
	found := AvailableBackends()
	if len(found) == 0 {
		return nil, ErrNoAudioBackend
	}
	return &found[0], nil
}
