package audio

import (
	"sync/atomic"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/audiometer/constant"
)

// voice is one buffer loaded on the deck
type voice struct {
	info    BufferInfo
	stream  beep.Streamer
	started atomic.Bool
}

// deck is the engine's single-voice streamer handed to the sink
// The sink pulls from it on its own goroutine; load swaps the voice atomically,
// so at most one voice renders and a replaced voice is never pulled again
// after the chunk in flight
type deck struct {
	current atomic.Pointer[voice]
	notify  chan BufferInfo
	frames  atomic.Uint64
}

func newDeck() *deck {
	return &deck{notify: make(chan BufferInfo, constant.ObserverQueueSize)}
}

// load replaces the active voice, returning true if one was discarded
func (d *deck) load(v *voice) bool {
	return d.current.Swap(v) != nil
}

// clear drops the active voice
func (d *deck) clear() {
	d.current.Store(nil)
}

// drain discards buffer-start notices left over from a previous run
func (d *deck) drain() {
	for {
		select {
		case <-d.notify:
		default:
			return
		}
	}
}

// active returns the number of loaded voices (0 or 1)
func (d *deck) active() int {
	if d.current.Load() != nil {
		return 1
	}
	return 0
}

// Stream implements beep.Streamer; it never drains, emitting silence when idle
func (d *deck) Stream(frames [][2]float64) (int, bool) {
	d.frames.Add(uint64(len(frames)))

	v := d.current.Load()
	if v == nil {
		silence(frames)
		return len(frames), true
	}

	if v.started.CompareAndSwap(false, true) {
		select {
		case d.notify <- v.info:
		default:
		}
	}

	n, ok := v.stream.Stream(frames)
	if !ok {
		n = 0
		// Finished one-shot voice; keep a newer voice if one was loaded meanwhile
		d.current.CompareAndSwap(v, nil)
	}
	if n < len(frames) {
		silence(frames[n:])
	}
	return len(frames), true
}

func (d *deck) Err() error { return nil }

func silence(frames [][2]float64) {
	for i := range frames {
		frames[i] = [2]float64{}
	}
}
