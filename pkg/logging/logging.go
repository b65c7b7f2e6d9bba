package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Local environments get the development
// encoder, everything else gets production JSON.
func New(appName, env, level string) (ectologger.Logger, error) {
	var zapLogger *zap.Logger
	var err error

	if env == "local" {
		zapLogger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		lvl, parseErr := zapcore.ParseLevel(level)
		if parseErr == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		zapLogger, err = cfg.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)
	return logger.WithFields(map[string]any{
		"app": appName,
		"env": env,
	}), nil
}
