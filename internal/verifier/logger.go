package verifier

import "github.com/gigshield/reviewcore/internal/logger"

// GetLogger returns the verifier module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("verifier")
}
