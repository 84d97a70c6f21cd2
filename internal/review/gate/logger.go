package gate

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the gate module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review.gate")
}
