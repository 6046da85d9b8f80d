// Package logging wires structured logging with zap.Logger, attaching
// request-scoped fields the way the teacher's shared logger package
// attaches sandbox/node fields.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger for the given level name ("debug", "info",
// "warn", "error"), production-encoded, and installs it as the global
// logger so package-level zap.L() calls elsewhere pick it up.
func New(levelName string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(levelName); err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)

	return logger, nil
}

func WithAppID(id string) zap.Field {
	return zap.String("app_id", id)
}

func WithActorID(id string) zap.Field {
	return zap.String("actor_id", id)
}

func WithNodeID(id string) zap.Field {
	return zap.String("node_id", id)
}

func WithLinkID(id string) zap.Field {
	return zap.String("link_id", id)
}
