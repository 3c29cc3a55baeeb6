// Package logging builds the zap logger used across graphsketch.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"graphsketch/internal/config"
)

// New builds a zap logger. format "console" gives a human-readable
// development encoder; anything else gives production JSON.
func New(level, format string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(format, "console") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	return zapCfg.Build()
}

// FromConfig builds the logger described by cfg.Log
func FromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Log.Level, cfg.Log.Format)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
