package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lixenwraith/audiometer/config"
)

var (
	// Global flags
	cfgPath     string
	backendName string
	debugMode   bool
	reportPath  string

	cfg    *config.Config
	logger *zap.Logger
	// closeLog releases the log file behind logger, if any
	closeLog = func() {}
)

// annotationUI marks commands that hand the terminal to the test UI
const annotationUI = "ui"

var rootCmd = &cobra.Command{
	Use:   "audiometer",
	Short: "Self-administered hearing threshold test",
	Long: `audiometer plays pure tones alternately to each ear and steps level and
frequency as you confirm hearing them.

Run without arguments to start the interactive test.`,
	SilenceUsage:      true,
	Annotations:       map[string]string{annotationUI: "tui"},
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runTest,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive hearing test",
	Long: `Keys:
  Enter, s   begin the test
  Space      I heard the tone
  x          stop the test
  q, Esc     quit`,
	Annotations: map[string]string{annotationUI: "tui"},
	RunE:        runTest,
}

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Render a test tone to a WAV file",
	RunE:  runTone,
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List detected audio backends",
	RunE:  runBackends,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (toml, yaml or json)")
	pf.StringVar(&backendName, "backend", "", "audio sink: auto, speaker, oto, pipe, none")
	pf.BoolVar(&debugMode, "debug", false, "debug logging")

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().StringVar(&reportPath, "report", "", "write the session summary as YAML")
	}

	toneCmd.Flags().Float64Var(&toneFreq, "freq", 1000, "frequency in Hz")
	toneCmd.Flags().Float64Var(&toneAmp, "amp", 0.5, "amplitude 0..1")
	toneCmd.Flags().Float64Var(&toneDuration, "duration", 2.0, "duration in seconds")
	toneCmd.Flags().StringVar(&tonePan, "pan", "center", "channel: left, right, center")
	toneCmd.Flags().StringVar(&toneOut, "out", "tone.wav", "output file")

	rootCmd.AddCommand(runCmd, toneCmd, backendsCmd)
}

// setup loads configuration and builds the logger for the invoked command
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if backendName != "" {
		cfg.Audio.Backend = backendName
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}

	// The terminal UI owns the screen; its logs go to a file or nowhere
	if cmd.Annotations[annotationUI] == "tui" {
		var closeFn func()
		logger, closeFn, err = fileLogger(cfg.Log, debugMode)
		if closeFn != nil {
			closeLog = closeFn
		}
	} else {
		logger, err = consoleLogger(cfg.Log)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	// Panic Recovery: ensure terminal is reset even if the test crashes
	defer func() {
		if r := recover(); r != nil {
			emergencyReset(os.Stdout)
			fmt.Fprintf(os.Stderr, "\r\n\x1b[31mAUDIOMETER CRASHED: %v\x1b[0m\r\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
			os.Exit(1)
		}
	}()

	if err := execute(); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and releases the log file on every path;
// cobra skips PersistentPostRun when RunE fails
func execute() error {
	defer func() { closeLog() }()
	return rootCmd.Execute()
}
