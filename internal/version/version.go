// Package version holds the release number and the build metadata stamped
// in with -ldflags "-X github.com/standardbeagle/mbrgrep/internal/version.GitCommit=...".
package version

// Version is reported to MCP clients in the server implementation info
const Version = "0.3.0"

var (
	GitCommit = "unknown"
	BuildDate = "development"
)

// Full is the --version string
func Full() string {
	return Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}
