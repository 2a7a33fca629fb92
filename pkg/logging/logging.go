// Package logging builds the application logger.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger output
type Config struct {
	Level  string
	Pretty bool
}

// New creates the application logger backed by zap. Pretty switches to the
// console encoder for local development.
func New(cfg Config) (ectologger.Logger, error) {
	var zcfg zap.Config
	if cfg.Pretty {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	zl, err := zcfg.Build(zap.WithCaller(false))
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zl, nil), nil
}
