// Package version holds build-time identification for the ilocra binary,
// populated via -ldflags at build time.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// Version from git tag (e.g., "v0.3.0")
	Version = "dev"

	// GitCommit is the git commit hash
	GitCommit = "unknown"

	// GitTag is the git tag if on a tag
	GitTag = ""

	// BuildDate is when the binary was built
	BuildDate = "unknown"

	// GoVersion is the Go version used to build
	GoVersion = runtime.Version()

	// Platform is the target platform
	Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// GetVersion returns the version string, falling back to a commit-derived
// dev version when no release tag is set.
func GetVersion() string {
	if Version == "dev" {
		// Development version - use git info
		if GitTag != "" {
			Version = GitTag
		} else if GitCommit != "unknown" && len(GitCommit) >= 7 {
			Version = fmt.Sprintf("dev-%s", GitCommit[:7])
		}
	}
	return Version
}

// GetFullVersion returns the multi-line detail block printed by --version-full.
func GetFullVersion() string {
	return fmt.Sprintf(`ilocra %s
Commit:   %s
Date:     %s
Go:       %s
Platform: %s`,
		GetVersion(),
		GitCommit,
		BuildDate,
		GoVersion,
		Platform)
}

// init sets the build date to current time if not already set
func init() {
	if BuildDate == "unknown" {
		BuildDate = time.Now().Format("2006-01-02T15:04:05Z")
	}
}
