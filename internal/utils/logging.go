package utils

import "go.uber.org/zap"

// NewLogger builds the shared production logger.
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger
}
