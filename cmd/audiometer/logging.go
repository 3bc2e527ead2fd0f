package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lixenwraith/audiometer/config"
)

const (
	logDir      = "logs"
	logFileName = "audiometer.log"
	maxLogSize  = 10 * 1024 * 1024 // 10MB
)

// consoleLogger logs to stderr at the configured level
func consoleLogger(lc config.LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// fileLogger logs to lc.File, or to logs/audiometer.log in debug mode
// With neither, logs are discarded so nothing writes over the terminal UI
func fileLogger(lc config.LogConfig, debug bool) (*zap.Logger, func(), error) {
	path := lc.File
	if path == "" && debug {
		path = filepath.Join(logDir, logFileName)
	}
	if path == "" {
		return zap.NewNop(), func() {}, nil
	}

	lvl, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, nil, err
	}

	f, err := openLogFile(path)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.Lock(f),
		lvl,
	)
	l := zap.New(core).With(zap.Int("pid", os.Getpid()))
	l.Info("logging started", zap.String("path", path))
	return l, func() { _ = f.Close() }, nil
}

// openLogFile opens path for append, rotating an existing file above maxLogSize
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		ext := filepath.Ext(path)
		rotated := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), time.Now().Format("20060102_150405"), ext)
		if err := os.Rename(path, rotated); err != nil {
			return nil, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
