// Package logger holds the process wide zap logger. Components take a child
// logger through WithModule so every entry carries a "module" field.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by a logger built by Init.
const ServiceName = "pureharvest-notifications"

var (
	mu     sync.RWMutex
	global = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init configures JSON output at level.
func Init(lvl string) error {
	return InitWithFormat(lvl, "json")
}

// InitWithFormat builds the global logger. format "console" selects the
// human readable development encoder; anything else is JSON. An unknown level
// falls back to info.
func InitWithFormat(lvl, format string) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if err := SetLevel(lvl); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg.Level = level
	cfg.InitialFields = map[string]any{"service": ServiceName}

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Replace(built)
	return nil
}

// SetLevel changes the level of loggers built by Init at runtime.
func SetLevel(lvl string) error {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(lvl))
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}

// Replace swaps the global logger. A nil logger installs a no-op logger.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

func Info(msg string, fields ...zap.Field)  { Logger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Logger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }
