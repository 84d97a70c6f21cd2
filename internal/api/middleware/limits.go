package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultBodyLimit caps request bodies. Submissions are small JSON objects.
const DefaultBodyLimit = "64K"

// NewBodyLimit rejects bodies larger than limit with 413.
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	if limit == "" {
		limit = DefaultBodyLimit
	}
	return middleware.BodyLimit(limit)
}

// NewSecureHeaders sets the standard hardening headers for a JSON API.
func NewSecureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'",
		ReferrerPolicy:        "no-referrer",
	})
}
