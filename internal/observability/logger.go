package observability

import "github.com/gigshield/reviewcore/internal/logger"

var log = logger.Global().Module("observability")
