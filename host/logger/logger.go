//go:build !tinygo

// Package logger builds the host zap logger and routes core debug output
// into it.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"harpclock/core"
)

// New creates a console logger writing to stderr at the given level
func New(level string) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	lvl, ok := ParseLevel(level)
	if !ok {
		return nil, zap.AtomicLevel{}, fmt.Errorf("unknown log level %q", level)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})

	log := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), atom))
	return log.Sugar(), atom, nil
}

// ParseLevel converts a level name to a zap level
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info", "":
		return zapcore.InfoLevel, true
	case "warn":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// AttachCore sends core debug messages to log at debug level and enables
// core debugging when log would print them
func AttachCore(log *zap.SugaredLogger) {
	core.SetDebugWriter(func(msg string) {
		log.Debug(strings.TrimRight(msg, "\n"))
	})
	core.SetDebugEnabled(log.Desugar().Core().Enabled(zapcore.DebugLevel))
}

// DumpTiming logs the core timing ring, oldest first
func DumpTiming(log *zap.SugaredLogger) {
	for _, ev := range core.TimingEvents() {
		log.Debugw("timing",
			"event", core.TimingEventName(ev.EventType),
			"clock", ev.Clock,
			"v1", ev.Value1,
			"v2", ev.Value2)
	}
}
