package mcp

// Tool names
const (
	ToolSearchMembers  = "search_members"
	ToolCancelSearch   = "cancel_search"
	ToolResolvePattern = "resolve_pattern"
	ToolActiveSearches = "active_searches"
)

const (
	serverName = "mbrgrep-mcp-server"

	// Output formats accepted by search_members
	outputJSON    = "json"
	outputText    = "text"
	outputCompact = "compact"
)
