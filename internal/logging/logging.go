// Package logging builds the process logger.
package logging

import (
	"fmt"

	"github.com/baswilson/memory-engine/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger with colored levels outside production,
// or a sampled JSON logger in production. cfg.LogLevel sets the minimum level.
func New(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}
	zc.Level = level
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build(zap.AddStacktrace(zap.ErrorLevel))
}
