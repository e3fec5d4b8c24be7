package mcp

import (
	"context"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mbrgrep/internal/config"
	"github.com/standardbeagle/mbrgrep/internal/debug"
	"github.com/standardbeagle/mbrgrep/internal/search"
	"github.com/standardbeagle/mbrgrep/internal/version"
)

// Server exposes member search over MCP
type Server struct {
	orch   *search.Orchestrator
	server *mcp.Server

	// Settings may be replaced by a reload while requests run
	cfgMu sync.RWMutex
	cfg   *config.Config

	watchWg sync.WaitGroup
}

// NewServer creates an MCP server backed by orch. cfg supplies the default
// search options for requests that leave them out.
func NewServer(orch *search.Orchestrator, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
		if err := config.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	}

	s := &Server{
		orch: orch,
		cfg:  cfg,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name: ToolSearchMembers,
		Description: "Search IBM i source members for a term. Locations are LIB, LIB/FILE or LIB/FILE/MEMBER " +
			"patterns with an optional trailing * in any part, or ALL for every library. Failed locations are " +
			"reported per pattern without aborting the others.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"term": {
					Type:        "string",
					Description: "Text or regular expression to find",
				},
				"patterns": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Locations to search, e.g. [\"ACME/QRPGLESRC\", \"ACME/QCLSRC/ORD*\"]. Entries may also be comma separated.",
				},
				"case_sensitive": {
					Type:        "boolean",
					Description: "Match case exactly (default from settings, normally false)",
				},
				"use_regex": {
					Type:        "boolean",
					Description: "Treat term as an extended regular expression",
				},
				"after_context": {
					Type:        "integer",
					Description: "Lines of context after each match, 0-50",
				},
				"max_matches": {
					Type:        "integer",
					Description: "Stop after this many matches per member, 0 = unlimited",
				},
				"search_id": {
					Type:        "string",
					Description: "Identifier to use with cancel_search, generated when omitted",
				},
				"format": {
					Type:        "string",
					Description: "Output format: json (default), text or compact",
				},
			},
			Required: []string{"term", "patterns"},
		},
	}, s.handleSearchMembers)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolCancelSearch,
		Description: "Cancel a running search, one of its patterns, or every running search.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"search_id": {
					Type:        "string",
					Description: "Search to cancel",
				},
				"pattern": {
					Type:        "string",
					Description: "Cancel only this pattern of the search",
				},
				"all": {
					Type:        "boolean",
					Description: "Cancel every running search",
				},
			},
		},
	}, s.handleCancelSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolResolvePattern,
		Description: "Show the IFS path each location pattern resolves to and, when a term is given, the exact command that would run.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"patterns": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Location patterns to resolve",
				},
				"term": {
					Type:        "string",
					Description: "Optional search term used to render commands",
				},
			},
			Required: []string{"patterns"},
		},
	}, s.handleResolvePattern)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolActiveSearches,
		Description: "List the identifiers of searches that are still running.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleActiveSearches)
}

// settings returns the current settings
func (s *Server) settings() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// applySettings replaces the default options. Dispatch settings such as
// max_parallel_searches are fixed when the orchestrator is built and need a
// restart.
func (s *Server) applySettings(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if old.Search.MaxParallelSearches != cfg.Search.MaxParallelSearches ||
		old.Search.GrepPath != cfg.Search.GrepPath ||
		old.Search.Environment != cfg.Search.Environment {
		debug.LogMCP("dispatch settings changed, restart the server to apply them\n")
	}
}

// WatchSettings reloads default options when the settings in dir change.
// The watcher stops when ctx is done.
func (s *Server) WatchSettings(ctx context.Context, dir string) {
	s.watchWg.Add(1)
	go func() {
		defer s.watchWg.Done()
		err := config.Watch(ctx, dir, func(cfg *config.Config, err error) {
			if err != nil {
				debug.LogMCP("settings reload failed, keeping previous settings: %v\n", err)
				return
			}
			debug.LogMCP("settings reloaded from %s\n", cfg.Source)
			s.applySettings(cfg)
		})
		if err != nil {
			debug.LogMCP("settings watcher stopped: %v\n", err)
		}
	}()
}

// Start serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	debug.LogMCP("Starting MCP server with stdio transport\n")
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over an arbitrary transport
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// Shutdown cancels running searches and waits for the settings watcher.
// The watcher's context must already be done.
func (s *Server) Shutdown() {
	if n := s.orch.CancelAll(); n > 0 {
		debug.LogMCP("cancelled %d running searches\n", n)
	}
	s.watchWg.Wait()
	debug.LogMCP("MCP server shutdown complete\n")
}
