package review

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the review service module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review")
}
