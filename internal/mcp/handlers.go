package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mbrgrep/internal/debug"
	"github.com/standardbeagle/mbrgrep/internal/display"
	"github.com/standardbeagle/mbrgrep/internal/qsys"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// SearchParams for search_members. Options left out fall back to the settings.
type SearchParams struct {
	Term          string   `json:"term"`
	Patterns      []string `json:"patterns"`
	CaseSensitive *bool    `json:"case_sensitive,omitempty"`
	UseRegex      *bool    `json:"use_regex,omitempty"`
	AfterContext  *int     `json:"after_context,omitempty"`
	MaxMatches    *int     `json:"max_matches,omitempty"`
	SearchID      string   `json:"search_id,omitempty"`
	Format        string   `json:"format,omitempty"`
}

// CancelParams for cancel_search
type CancelParams struct {
	SearchID string `json:"search_id,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// ResolveParams for resolve_pattern
type ResolveParams struct {
	Patterns []string `json:"patterns"`
	Term     string   `json:"term,omitempty"`
}

// CancelResponse reports how many scopes a cancel request reached
type CancelResponse struct {
	SearchID  string `json:"search_id,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Cancelled int    `json:"cancelled"`
}

// ResolvedPattern is one entry of a resolve_pattern response
type ResolvedPattern struct {
	Pattern      string `json:"pattern"`
	Level        string `json:"level"`
	ResourcePath string `json:"resource_path"`
	Command      string `json:"command,omitempty"`
}

// request builds a search request from params and the current settings
func (s *Server) request(params SearchParams) searchtypes.SearchRequest {
	opts := s.settings().SearchOptions()
	if params.CaseSensitive != nil {
		opts.CaseSensitive = *params.CaseSensitive
	}
	if params.UseRegex != nil {
		opts.UseRegex = *params.UseRegex
	}
	if params.AfterContext != nil {
		opts.AfterContext = *params.AfterContext
	}
	if params.MaxMatches != nil {
		opts.MaxMatches = *params.MaxMatches
	}
	return searchtypes.SearchRequest{
		SearchID: params.SearchID,
		Term:     params.Term,
		Patterns: params.Patterns,
		Options:  opts,
	}
}

func (s *Server) handleSearchMembers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SearchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolSearchMembers, fmt.Errorf("invalid parameters: %w", err))
	}

	format := strings.ToLower(strings.TrimSpace(params.Format))
	switch format {
	case "":
		format = outputJSON
	case outputJSON, outputText, outputCompact:
	default:
		return createErrorResponse(ToolSearchMembers, fmt.Errorf("unknown format %q, expected json, text or compact", params.Format))
	}

	result, err := s.orch.Execute(ctx, s.request(params), progressNotifier(ctx, req))
	if err != nil {
		debug.LogMCP("search_members failed: %v\n", err)
		return createErrorResponse(ToolSearchMembers, err)
	}

	if format == outputJSON {
		return createJSONResponse(result)
	}
	formatter := display.NewResultFormatter(display.FormatterOptions{
		Format:      format,
		ShowContext: true,
	})
	return createTextResponse(formatter.Format(result)), nil
}

// progressNotifier forwards orchestrator progress when the client asked for it
func progressNotifier(ctx context.Context, req *mcp.CallToolRequest) searchtypes.ProgressFunc {
	if req == nil || req.Params == nil || req.Session == nil {
		return nil
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return nil
	}
	return func(completed, total int, snapshot *searchtypes.SearchResult) {
		_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(completed),
			Total:         float64(total),
			Message:       display.FormatProgress(completed, total, snapshot),
		})
	}
}

func (s *Server) handleCancelSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params CancelParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse(ToolCancelSearch, fmt.Errorf("invalid parameters: %w", err))
		}
	}

	resp := CancelResponse{SearchID: params.SearchID, Pattern: params.Pattern}
	switch {
	case params.All:
		resp.Cancelled = s.orch.CancelAll()
	case params.SearchID == "":
		return createErrorResponse(ToolCancelSearch, errors.New("search_id is required unless all is true"))
	case params.Pattern != "":
		resp.Cancelled = s.orch.CancelPattern(params.SearchID, params.Pattern)
	default:
		if s.orch.Cancel(params.SearchID) {
			resp.Cancelled = 1
		}
	}

	debug.LogMCP("cancel_search %+v: %d cancelled\n", params, resp.Cancelled)
	return createJSONResponse(resp)
}

func (s *Server) handleResolvePattern(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ResolveParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolResolvePattern, fmt.Errorf("invalid parameters: %w", err))
	}

	resolved, err := s.resolve(params)
	if err != nil {
		return createErrorResponse(ToolResolvePattern, err)
	}
	return createJSONResponse(map[string]interface{}{
		"patterns": resolved,
	})
}

func (s *Server) resolve(params ResolveParams) ([]ResolvedPattern, error) {
	if strings.TrimSpace(params.Term) != "" {
		plan, err := s.orch.Plan(s.request(SearchParams{Term: params.Term, Patterns: params.Patterns}))
		if err != nil {
			return nil, err
		}
		out := make([]ResolvedPattern, 0, len(plan))
		for _, p := range plan {
			out = append(out, ResolvedPattern{
				Pattern:      p.Pattern,
				Level:        p.Level.String(),
				ResourcePath: p.ResourcePath,
				Command:      p.Line(),
			})
		}
		return out, nil
	}

	patterns, err := qsys.SplitAll(params.Patterns)
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedPattern, 0, len(patterns))
	for _, p := range patterns {
		sp, err := qsys.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedPattern{
			Pattern:      p,
			Level:        sp.Level.String(),
			ResourcePath: sp.Path,
		})
	}
	return out, nil
}

func (s *Server) handleActiveSearches(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]interface{}{
		"search_ids": s.orch.Active(),
	})
}
