//go:build !tinygo

package logx

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	rootOnce sync.Once
	root     *zap.Logger
	atom     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// SetLevel changes the minimum level for all loggers.
func SetLevel(s string) {
	switch parseLevel(s) {
	case levelDebug:
		atom.SetLevel(zapcore.DebugLevel)
	case levelWarn:
		atom.SetLevel(zapcore.WarnLevel)
	case levelError:
		atom.SetLevel(zapcore.ErrorLevel)
	default:
		atom.SetLevel(zapcore.InfoLevel)
	}
}

// Sync flushes buffered entries; called before a simulated restart or sleep.
func Sync() {
	if root != nil {
		_ = root.Sync()
	}
}

func rootLogger() *zap.Logger {
	rootOnce.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.RFC3339TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zapcore.Lock(os.Stdout),
			atom,
		)
		root = zap.New(core)
	})
	return root
}

type zapBackend struct {
	s *zap.SugaredLogger
}

func newBackend(component string) backend {
	return zapBackend{s: rootLogger().Named(component).Sugar()}
}

func (z zapBackend) log(lv level, msg string, kv []any) {
	switch lv {
	case levelDebug:
		z.s.Debugw(msg, kv...)
	case levelWarn:
		z.s.Warnw(msg, kv...)
	case levelError:
		z.s.Errorw(msg, kv...)
	default:
		z.s.Infow(msg, kv...)
	}
}
