package recheck

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the continuous check module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("recheck")
}
