package app

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the production JSON logger at the given level ("debug", "info", ...)
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
