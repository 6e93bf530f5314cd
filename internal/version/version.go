// Package version holds build information, set with -ldflags at build time.
package version

import "fmt"

// Version is the release, vX.Y.Z or vX.Y.Z-dev.
var Version = "v0.4.0-dev"

// BuildTime is the build timestamp.
var BuildTime = "unknown"

// String formats the version for --version output.
func String() string {
	return fmt.Sprintf("superlinks %s (built %s)", Version, BuildTime)
}
