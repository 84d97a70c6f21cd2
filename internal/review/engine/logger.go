package engine

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the engine module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review.engine")
}
