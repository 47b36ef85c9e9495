package utils

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventSink is the logging capability injected into every harvesting and
// reconciliation component.
type EventSink interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Debug(format string, args ...any)
}

// Logger provides leveled, printf-style logging backed by zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a Logger from a level name ("debug", "info", ...) and a
// format ("console" or "json").
func NewLogger(level, format string) (*Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrap(err, "logger: parse level")
	}
	cfg.Level.SetLevel(lvl)

	z, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		return nil, eris.Wrap(err, "logger: build")
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// NewStreamLogger returns a Logger that writes plain console lines to w in
// addition to stdout. The HTTP trigger uses it to stream run progress.
func NewStreamLogger(w io.Writer, level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrap(err, "logger: parse level")
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	enc := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(w), lvl),
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl),
	)
	return &Logger{sugar: zap.New(core).Sugar()}, nil
}

func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
