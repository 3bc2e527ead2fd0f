package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/audiometer/session"
	"github.com/lixenwraith/audiometer/status"
)

const frameInterval = 50 * time.Millisecond

// activeScreen is finalized by the crash handler
var activeScreen tcell.Screen

func newScreen() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	activeScreen = screen
	return screen, nil
}

// emergencyReset restores the terminal after a crash
func emergencyReset(w io.Writer) {
	if activeScreen != nil {
		activeScreen.Fini()
		activeScreen = nil
		return
	}
	// Leave alternate screen, show cursor, reset attributes
	fmt.Fprint(w, "\x1b[?1049l\x1b[?25h\x1b[0m")
}

// line is one row of rendered text
type line struct {
	text  string
	style tcell.Style
}

var (
	styleTitle   = tcell.StyleDefault.Bold(true)
	styleLevel   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleWarn    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleNotice  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleHelp    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus  = tcell.StyleDefault.Reverse(true)
	statusFields = []string{
		"session.phase",
		"tone.channel",
		"tone.freq_hz",
		"tone.amp_pct",
		"session.responses",
		"engine.buffers_started",
		"engine.degraded",
	}
)

// engineStatus is the engine surface shown on the status line; *audio.Engine implements it
type engineStatus interface {
	SinkName() string
	ActiveVoices() int
	GetStats() (played, skipped, frames uint64)
}

// app is the terminal front-end; all session calls happen on the run loop
type app struct {
	screen  tcell.Screen
	sess    *session.Session
	metrics *status.Registry
	engine  engineStatus

	notice     string
	noticeTime time.Time
}

func newApp(screen tcell.Screen, sess *session.Session, metrics *status.Registry, engine engineStatus) *app {
	return &app{
		screen:  screen,
		sess:    sess,
		metrics: metrics,
		engine:  engine,
	}
}

func (a *app) run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)

	go func() {
		// Panic recovery for input polling goroutine to ensure terminal cleanup
		defer func() {
			if r := recover(); r != nil {
				emergencyReset(os.Stdout)
				fmt.Fprintf(os.Stderr, "\r\n\x1b[31mEVENT POLLER CRASHED: %v\x1b[0m\r\n", r)
				fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
				os.Exit(1)
			}
		}()

		for {
			ev := a.screen.PollEvent()
			// Nil after Fini
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-done:
				return
			}
		}
	}()

	a.draw()
	for {
		select {
		case ev := <-eventChan:
			if !a.handleEvent(ev) {
				return
			}
			a.draw()

		case <-ticker.C:
			a.draw()
		}
	}
}

// handleEvent returns false when the user quits
func (a *app) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *app) handleKey(key tcell.Key, r rune) bool {
	var err error
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		err = a.sess.Begin()
	case tcell.KeyRune:
		switch r {
		case 'q':
			return false
		case 's':
			err = a.sess.Begin()
		case ' ':
			err = a.sess.RegisterResponse()
		case 'x':
			a.sess.Stop()
		}
	}

	if err != nil {
		a.notice = err.Error()
		a.noticeTime = time.Now()
	}
	return true
}

// lines renders the current state top to bottom, status line excluded
func (a *app) lines() []line {
	d := a.sess.DisplayState()
	out := []line{
		{"HEARING TEST", styleTitle},
		{"", tcell.StyleDefault},
		{d.Message, tcell.StyleDefault},
		{"", tcell.StyleDefault},
	}

	if d.Running || d.Finished {
		out = append(out, line{
			fmt.Sprintf("Ear: %-5s  Frequency: %4d Hz  Level: %3d%%",
				strings.ToUpper(d.Channel), d.FrequencyHz, d.AmplitudePercent),
			styleLevel,
		})
	}
	if d.EngineDegraded {
		out = append(out, line{"Audio unavailable, continuing without sound", styleWarn})
	}
	if a.notice != "" && time.Since(a.noticeTime) < 3*time.Second {
		out = append(out, line{a.notice, styleNotice})
	}

	out = append(out, line{"", tcell.StyleDefault})
	switch {
	case d.Running:
		out = append(out, line{"[Space] heard it   [x] stop   [q] quit", styleHelp})
	default:
		out = append(out, line{"[Enter] begin   [q] quit", styleHelp})
	}
	return out
}

// statusLine renders selected metrics as key=value pairs
func (a *app) statusLine() string {
	snap := a.metrics.Snapshot()
	parts := make([]string, 0, len(statusFields)+4)
	if a.engine != nil {
		played, skipped, frames := a.engine.GetStats()
		parts = append(parts,
			"sink="+a.engine.SinkName(),
			fmt.Sprintf("voices=%d", a.engine.ActiveVoices()),
			fmt.Sprintf("played=%d/%d", played, played+skipped),
			fmt.Sprintf("frames=%d", frames),
		)
	}
	for _, k := range statusFields {
		if v, ok := snap[k]; ok {
			parts = append(parts, k[strings.LastIndex(k, ".")+1:]+"="+v)
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (a *app) draw() {
	a.screen.Clear()
	width, height := a.screen.Size()

	for y, l := range a.lines() {
		if y+1 >= height-1 {
			break
		}
		x := (width - len(l.text)) / 2
		a.putString(max(x, 0), y+1, l.text, l.style)
	}

	status := a.statusLine()
	for x := 0; x < width; x++ {
		a.screen.SetContent(x, height-1, ' ', nil, styleStatus)
	}
	a.putString(0, height-1, status, styleStatus)

	a.screen.Show()
}

func (a *app) putString(x, y int, s string, style tcell.Style) {
	width, _ := a.screen.Size()
	for _, r := range s {
		if x >= width {
			return
		}
		a.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
