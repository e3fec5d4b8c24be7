package search

// Orchestrator constants
const (
	// Patterns dispatched concurrently per batch when the settings provider
	// supplies nothing
	DefaultMaxParallel = 4
	// Upper bound accepted from configuration. Each in-flight pattern holds
	// one session on the remote system.
	MaxParallelLimit = 32

	// Exit codes of the search utility
	ExitMatches   = 0
	ExitNoMatches = 1
)

// Substrings of the search utility's stderr used to classify failures.
// The text is produced by the remote tool and may change between releases.
const (
	stderrPermissionDenied = "Permission denied"
	stderrNotFound         = "No such file or directory"
)
