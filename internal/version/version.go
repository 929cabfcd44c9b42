package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App returns the current version of pgdiff
func App() string {
	return strings.TrimSpace(versionFile)
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// String renders the full version line shown by the CLI
func String() string {
	return "pgdiff v" + App() + "@" + GitCommit + " " + Platform() + " " + BuildDate
}
