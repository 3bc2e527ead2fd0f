package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lixenwraith/audiometer/audio"
	"github.com/lixenwraith/audiometer/constant"
	"github.com/lixenwraith/audiometer/session"
	"github.com/lixenwraith/audiometer/status"
	"github.com/lixenwraith/audiometer/tone"
)

var (
	toneFreq     float64
	toneAmp      float64
	toneDuration float64
	tonePan      string
	toneOut      string
)

// runTest wires engine and session behind the terminal UI
func runTest(cmd *cobra.Command, args []string) error {
	engineCfg := cfg.Engine()
	sink, err := audio.NewSink(engineCfg, logger)
	if err != nil {
		return err
	}

	eng := audio.NewEngine(engineCfg, sink, logger)
	metrics := status.NewRegistry()
	sess := session.New(eng,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithPolicy(cfg.Policy()),
	)
	defer sess.Close()

	screen, err := newScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	ui := newApp(screen, sess, metrics, eng)
	ui.run()
	screen.Fini()
	activeScreen = nil

	sess.Stop()
	sum := sess.Summary()
	if sum.ID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d responses, %d tones\n",
			sum.ID, sum.Responses, len(sum.Presentations))
	}

	if reportPath != "" {
		if err := writeReport(reportPath, sum); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", reportPath), zap.Stringer("run", sess.ID()))
	}
	return nil
}

func writeReport(path string, sum session.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := sum.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// runTone renders one tone to a WAV file
func runTone(cmd *cobra.Command, args []string) error {
	p := tone.Params{FrequencyHz: toneFreq, Amplitude: toneAmp, DurationSeconds: toneDuration}
	if !(p.Amplitude >= constant.MinAmplitude && p.Amplitude <= constant.MaxAmplitude) {
		return fmt.Errorf("%w: amplitude %v outside [0,1]", tone.ErrInvalidParameter, p.Amplitude)
	}

	buf, err := tone.Synthesize(p, constant.SampleRate)
	if err != nil {
		return err
	}

	f, err := os.Create(toneOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", toneOut, err)
	}
	if err := audio.EncodeWAV(f, buf, audio.ParsePan(tonePan)); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", toneOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Debug("tone written",
		zap.String("path", toneOut),
		zap.Float64("freq_hz", p.FrequencyHz),
		zap.Int("samples", buf.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %.0f Hz, %d%%, %.1fs, %s\n",
		toneOut, p.FrequencyHz, p.AmplitudePercent(), p.DurationSeconds, audio.ParsePan(tonePan))
	return nil
}

// runBackends prints the configured sink and the pipe tools found on PATH
func runBackends(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configured sink: %s\n", cfg.Audio.Backend)

	found := audio.AvailableBackends()
	if len(found) == 0 {
		fmt.Fprintln(out, "no pipe backends found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH")
	for _, b := range found {
		fmt.Fprintf(tw, "%s\t%s\n", b.Name, b.Path)
	}
	return tw.Flush()
}
