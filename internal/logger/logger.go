package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log atomic.Pointer[zap.Logger]

// Init initializes the global logger.
// "production" logs JSON, "quiet" discards everything, anything else logs to a colored console.
func Init(environment string) error {
	var config zap.Config

	switch environment {
	case "production":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "quiet":
		log.Store(zap.NewNop())
		return nil
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := config.Build()
	if err != nil {
		return err
	}
	log.Store(l)
	return nil
}

// Set replaces the global logger (tests use zaptest or observer loggers)
func Set(l *zap.Logger) {
	log.Store(l)
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if l := log.Load(); l != nil {
		return l
	}
	// Fallback to a no-op logger if Init wasn't called
	nop := zap.NewNop()
	if log.CompareAndSwap(nil, nop) {
		return nop
	}
	return log.Load()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if l := log.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
