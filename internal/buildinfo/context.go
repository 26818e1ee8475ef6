// Package buildinfo carries build-time metadata kept apart from user configuration.
package buildinfo

import "runtime/debug"

// UnknownValue is reported for metadata not injected at build time.
const UnknownValue = "unknown"

// Context holds version metadata injected by main at startup.
type Context struct {
	Version   string
	BuildDate string
	// Revision is the VCS commit, read from the embedded build info when not injected.
	Revision string
}

// NewContext creates build metadata. An empty revision is filled from the
// module build info when available.
func NewContext(version, buildDate string) *Context {
	c := &Context{Version: version, BuildDate: buildDate}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				c.Revision = s.Value
			}
		}
	}
	return c
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release names the build for error telemetry, e.g. "carbon-engine@1.2.0".
func (c *Context) Release() string {
	return "carbon-engine@" + c.GetVersion()
}
