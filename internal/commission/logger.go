package commission

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the commission module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("commission")
}
