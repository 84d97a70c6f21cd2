// Package middleware provides HTTP middleware components for the intake API.
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gigshield/reviewcore/internal/logger"
)

// NewRequestLogger logs one line per request. Requests matched by skipper
// are not logged.
func NewRequestLogger(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     skipper,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			log.WithContext(c.Request().Context()).Info("request", fields...)
			return nil
		},
	})
}

// SkipPaths returns a skipper for exact request paths, used to keep
// scrapes and health probes out of the request log.
func SkipPaths(paths ...string) middleware.Skipper {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}
	return func(c echo.Context) bool {
		return skip[c.Request().URL.Path]
	}
}

// NewTraceContext stores the request id, set by middleware.RequestID, in the
// request context so every log line of the request carries it as trace id.
func NewTraceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
