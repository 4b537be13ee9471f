package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the zap logger.
type Options struct {
	Level       string // debug, info, warn, error
	Encoding    string // json or console
	Development bool
}

// New builds a zap logger. Development mode switches to the console encoder at debug level.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		if !opts.Development {
			cfg.Level = zap.NewAtomicLevelAt(level)
		}
	}
	if opts.Encoding != "" && !opts.Development {
		cfg.Encoding = opts.Encoding
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
