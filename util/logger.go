// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the user-facing verbosity counter (-v, -vv, -vvv).
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// NewLogger returns a console logger on stderr that prints messages at
// or below the given verbosity (0 = errors only, 1 = normal,
// 2 = verbose, 3 = debug with timestamps).
func NewLogger(verbosity int) *zap.Logger {
	return NewLoggerWithOutput(verbosity, os.Stderr)
}

// NewLoggerWithOutput is [NewLogger] with an explicit sink.
func NewLoggerWithOutput(verbosity int, w io.Writer) *zap.Logger {
	lvl := LogLevel(verbosity)

	encCfg := zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      levelPrefix,
		ConsoleSeparator: " ",
	}
	if lvl >= LogDebug {
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapLevel(lvl),
	)
	return zap.New(core)
}

// zapLevel maps verbosity onto zap's minimum enabled level.  There is
// no "verbose" level in zap, so -vv and -vvv both enable Debug.
func zapLevel(l LogLevel) zapcore.Level {
	switch {
	case l <= LogQuiet:
		return zapcore.ErrorLevel
	case l == LogNormal:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func levelPrefix(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("[DBG]")
	case zapcore.InfoLevel:
		enc.AppendString("[INF]")
	case zapcore.WarnLevel:
		enc.AppendString("[WRN]")
	default:
		enc.AppendString("[ERR]")
	}
}
