// Package buildinfo carries build-time metadata injected through -ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Context holds build metadata. main fills it from variables set with -ldflags.
type Context struct {
	// Version is the git tag the binary was built from.
	Version string
	// BuildDate is when the binary was built.
	BuildDate string
	// Commit is the short git revision.
	Commit string
}

// NewContext returns build metadata.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{Version: version, BuildDate: buildDate, Commit: commit}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetCommit returns the git revision or UnknownValue.
func (c *Context) GetCommit() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Commit)
}

// Release is the release name reported to Sentry.
func (c *Context) Release() string {
	return "libwebphone@" + c.GetVersion()
}

// Environment classifies the build for error reporting. Untagged builds are development builds.
func (c *Context) Environment() string {
	if c.GetVersion() == UnknownValue || c.GetVersion() == "dev" {
		return "development"
	}
	return "production"
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("libwebphone %s (commit %s, built %s, %s %s/%s)",
		c.GetVersion(), c.GetCommit(), c.GetBuildDate(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
