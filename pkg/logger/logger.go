// Package logger holds the process-wide zap logger shared by experience-api
// and provider-check. Components take a child through Named so every entry
// carries its origin, e.g. "aggregator" or "providers.heavenly_tours".
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

// config picks the encoder for an APP_ENV value. Only "dev" logs in the
// colored console format; uat, prod and anything unrecognised emit JSON.
func config(env string) zap.Config {
	if env == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// Init replaces the global logger. service and env are stamped on every
// entry; an unparsable level keeps the encoder's default.
func Init(service, env, level string) {
	cfg := config(env)
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.InitialFields = map[string]any{
		"service": service,
		"env":     env,
	}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("logger: build: " + err.Error())
	}

	mu.Lock()
	base = l
	mu.Unlock()

	l.Info("logger initialized", zap.String("level", cfg.Level.String()))
}

// L returns the global logger, initialising a dev logger on first use so
// tests and tools that skip Init still get output.
func L() *zap.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("experiences", "dev", "info")
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// S returns the sugared form of L, used by the binaries' main functions.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Named returns a child of the global logger for one component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered entries; defer it in main.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
