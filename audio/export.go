package audio

import (
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/audiometer/tone"
)

// EncodeWAV writes buf as 16-bit stereo WAV, routed by pan
func EncodeWAV(w io.WriteSeeker, buf tone.Buffer, pan Pan) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(buf.SampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	return wav.Encode(w, newToneStreamer(buf, pan), format)
}
