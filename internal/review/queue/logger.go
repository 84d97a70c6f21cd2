package queue

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the queue module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review.queue")
}
