package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"go.uber.org/zap"

	"github.com/lixenwraith/audiometer/constant"
)

// pipeSink writes s16le stereo to a system audio tool's stdin (or OSS device)
type pipeSink struct {
	logger *zap.Logger

	// openWriter acquires the output; defaults to backend detection
	openWriter func() (io.WriteCloser, error)

	backend *BackendConfig
	cmd     *exec.Cmd
	output  io.WriteCloser

	stopChan chan struct{}
	stopped  atomic.Bool
	errChan  chan error
	wg       sync.WaitGroup
	tick     time.Duration
}

func newPipeSink(logger *zap.Logger) *pipeSink {
	s := &pipeSink{
		logger: logger,
		tick:   constant.AudioBufferDuration,
	}
	s.openWriter = s.openBackend
	return s
}

func (s *pipeSink) Name() string { return SinkPipe }

// openBackend launches the detected backend process
func (s *pipeSink) openBackend() (io.WriteCloser, error) {
	backend, err := DetectBackend()
	if err != nil {
		return nil, err
	}
	s.backend = backend

	if backend.Type == BackendOSS {
		// Direct file write for OSS
		return os.OpenFile(backend.Path, os.O_WRONLY, 0)
	}

	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, err
	}
	s.cmd = cmd
	return stdin, nil
}

// Open acquires the backend and starts the writer loop
func (s *pipeSink) Open(src beep.Streamer) error {
	out, err := s.openWriter()
	if err != nil {
		return err
	}

	s.output = out
	s.stopChan = make(chan struct{})
	s.errChan = make(chan error, 1)
	s.stopped.Store(false)

	if s.backend != nil {
		s.logger.Debug("pipe backend opened", zap.String("backend", s.backend.Name))
	}

	if s.cmd != nil {
		s.wg.Add(1)
		go s.monitorProcess(s.cmd)
	}

	s.wg.Add(1)
	go s.loop(src, out)
	return nil
}

func (s *pipeSink) Errors() <-chan error { return s.errChan }

// report pushes err unless the sink is shutting down
func (s *pipeSink) report(err error) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.errChan <- err:
	default:
	}
}

// monitorProcess watches for backend exit
func (s *pipeSink) monitorProcess(cmd *exec.Cmd) {
	defer s.wg.Done()

	err := cmd.Wait()
	if err == nil {
		err = io.EOF
	}
	s.report(fmt.Errorf("%w: backend exited: %v", ErrPipeClosed, err))
}

// loop pulls frames each tick and writes them to the backend
func (s *pipeSink) loop(src beep.Streamer, out io.Writer) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	frames := make([][2]float64, constant.AudioBufferSamples)
	outBytes := make([]byte, constant.AudioBufferSamples*constant.AudioBytesPerFrame)

	for {
		select {
		case <-s.stopChan:
			return

		case <-ticker.C:
			n, ok := src.Stream(frames)
			if !ok {
				n = 0
			}
			silence(frames[n:])
			framesToBytes(frames, outBytes)

			if _, err := out.Write(outBytes); err != nil {
				s.report(fmt.Errorf("%w: %v", ErrPipeClosed, err))
				return
			}
		}
	}
}

// Close stops the writer and releases the backend
func (s *pipeSink) Close() error {
	if s.output == nil || !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stopChan)
	err := s.output.Close()

	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}

	s.wg.Wait()
	s.output = nil
	s.cmd = nil
	return err
}

// framesToBytes converts float64 stereo frames to interleaved int16 LE bytes
// Samples are hard clipped; no limiter, a presented tone must stay a pure sine
func framesToBytes(in [][2]float64, out []byte) {
	for i, f := range in {
		idx := i * constant.AudioBytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], uint16(toInt16(f[0])))   // L
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(toInt16(f[1]))) // R
	}
}

func toInt16(v float64) int16 {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}
