// Package voicelog provides the repository's Logger contract
// (Debug/Info/Warn/Error, msg plus loosely typed args) and a zap-backed
// implementation of it, so every package logs through one injected seam
// instead of a global.
//
// Grounded on dmzoneill-ollama-proxy/pkg/logging/logger.go's
// production/development config split (JSON in production, colorized
// console in development) — zap is already an indirect dependency of two
// pack repos (blitss-sip-tg-bridge, dmzoneill-ollama-proxy), making it the
// corpus's structured-logging idiom even though the teacher itself only
// shipped a NoOpLogger.
package voicelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger keeps the Debug/Info/Warn/Error shape of the teacher's logger
// interface. voicelog imports no other package of this module, so any
// package here can depend on it without a cycle.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// New builds a zap-backed Logger. level is one of debug/info/warn/error;
// production switches JSON encoding on and disables color, matching the
// split dmzoneill-ollama-proxy's InitLogger makes.
func New(level string, production bool) (Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	built, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: built.Sugar()}, nil
}

func (z *zapLogger) Debug(msg string, args ...interface{}) { z.l.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...interface{})  { z.l.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...interface{})  { z.l.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...interface{}) { z.l.Errorw(msg, args...) }

// Sync flushes buffered log entries; call before process exit.
func Sync(l Logger) {
	if z, ok := l.(*zapLogger); ok {
		_ = z.l.Sync()
	}
}

// NoOp discards everything; useful in tests and as a safe zero value.
type NoOp struct{}

func (NoOp) Debug(string, ...interface{}) {}
func (NoOp) Info(string, ...interface{})  {}
func (NoOp) Warn(string, ...interface{})  {}
func (NoOp) Error(string, ...interface{}) {}
