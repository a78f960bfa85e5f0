// Package version holds build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().UTC().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: GoVersion}
}

// String renders the metadata on one line, e.g. "v0.3.0 (commit=abcd123, built=..., go=go1.25.5)".
func (i Info) String() string {
	return fmt.Sprintf("%s (commit=%s, built=%s, go=%s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}
