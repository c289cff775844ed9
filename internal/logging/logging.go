// Package logging wraps zap's sugared logger behind the small leveled-call
// surface the rest of this codebase is written against (Infof/Debugf/Warnf/
// Errorf/Tracef), so call sites read the same regardless of which logging
// library backs them.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	sugar  *zap.SugaredLogger
	levelN = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	sugar = build()
}

func build() *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(cfg)
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), levelN)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// SetLevel sets the minimum level by name: "trace", "debug", "info", "warn", "error".
// "trace" is mapped to zap's debug level with a "trace" field, since zap has
// no dedicated trace level.
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(name) {
	case "trace", "debug":
		levelN.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		levelN.SetLevel(zapcore.WarnLevel)
	case "error":
		levelN.SetLevel(zapcore.ErrorLevel)
	default:
		levelN.SetLevel(zapcore.InfoLevel)
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Infof(template string, args ...interface{})  { current().Infof(template, args...) }
func Debugf(template string, args ...interface{}) { current().Debugf(template, args...) }
func Warnf(template string, args ...interface{})  { current().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { current().Errorf(template, args...) }
func Tracef(template string, args ...interface{}) {
	current().With("trace", true).Debugf(template, args...)
}

func Info(args ...interface{})  { current().Info(args...) }
func Debug(args ...interface{}) { current().Debug(args...) }
func Warn(args ...interface{})  { current().Warn(args...) }
func Error(args ...interface{}) { current().Error(args...) }

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = current().Sync()
}
