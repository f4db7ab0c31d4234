// Package version provides build information for gridrunner.
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version. Override at build time with:
//
//	go build -ldflags "-X github.com/AaronLay10/gridrunner/internal/version.Version=x.y.z"
var Version = "0.3.0"

// Commit is the source revision, set via -ldflags like Version.
var Commit = "unknown"

// String formats the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("gridrunner %s (%s, %s)", Version, Commit, runtime.Version())
}
