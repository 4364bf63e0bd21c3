package log

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFile = "ingestd.log"

// New logs at debug level to file, or to ingestd.log when file is empty.
func New(file string) logr.Logger {
	if file == "" {
		file = logFile
	}
	l, err := NewWithLevel("debug", file)
	if err != nil {
		panic(err)
	}
	return l
}

func NewStdoutLogger() logr.Logger {
	l, err := NewWithLevel("debug", "stdout")
	if err != nil {
		panic(err)
	}
	return l
}

// NewWithLevel builds a JSON logger at level (debug, info, warn, error)
// writing to the given outputs. Debug enables logr V(1) messages.
func NewWithLevel(level string, outputs ...string) (logr.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	zc.OutputPaths = outputs
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to build logger: %w", err)
	}
	return zapr.NewLogger(z), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
