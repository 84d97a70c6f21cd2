// Package privacy scrubs personal data from messages that leave the process:
// telemetry events, alert bodies and error strings. Submission URLs identify
// workers and posts, and notification URLs carry service tokens.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// urlPattern matches any scheme://... token, including shoutrrr service
// URLs such as telegram://token@telegram.
var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// ScrubMessage replaces every URL in message with RedactURL. Trailing
// punctuation stays in the message.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, func(m string) string {
		u := strings.TrimRight(m, ".,;:)")
		return RedactURL(u) + m[len(u):]
	})
}

// RedactURL keeps the scheme and host of rawURL for debugging and drops
// credentials, path, query and fragment.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString("***@")
	}
	b.WriteString(u.Host)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		b.WriteString("/[redacted]")
	}
	return b.String()
}

// SanitizedError wraps an error while providing a sanitized message for logging.
// The original error is preserved for programmatic access via Unwrap().
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string { return e.sanitizedMsg }

func (e *SanitizedError) Unwrap() error { return e.original }

// WrapError sanitizes an error message using ScrubMessage. It returns nil
// for a nil error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
