// Package buildinfo contains build-time metadata kept apart from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/gigshield/reviewcore/internal/buildinfo.version=...".
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext creates a build context.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// Current returns the metadata injected into this binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// GetVersion returns the version, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the release name reported to error telemetry.
func (c *Context) Release() string {
	return fmt.Sprintf("reviewcore@%s", c.GetVersion())
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("reviewcore %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
