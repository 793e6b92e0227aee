// Package logger provides structured logging for the Aido backend.
//
// This package wraps Uber's zap logger to provide high-performance,
// structured logging with configurable log levels. It initializes a global
// logger instance for use throughout the application.
//
// # Usage
//
// After initialization, use the global Log variable:
//
//	logger.Log.Info("oauth2 user processed",
//	    zap.String("provider", "google"),
//	    zap.String("email", email),
//	)
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func InitLogger(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}
