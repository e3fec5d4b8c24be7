package searchtypes

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
	"github.com/standardbeagle/mbrgrep/internal/qsys"
)

// MaxAfterContext is the largest number of trailing context lines a search may ask for
const MaxAfterContext = 50

// SearchOptions configures search behavior. All fields are explicit; defaults
// are applied once by the settings provider before a request is built.
type SearchOptions struct {
	CaseSensitive bool `json:"case_sensitive"`
	UseRegex      bool `json:"use_regex"`
	AfterContext  int  `json:"after_context"`
	MaxMatches    int  `json:"max_matches,omitempty"` // per member, 0 = unlimited
}

// SearchRequest is one user search over one or more location patterns
type SearchRequest struct {
	SearchID string        `json:"search_id,omitempty"` // generated when empty
	Term     string        `json:"term"`
	Patterns []string      `json:"patterns"` // raw entries, each may hold comma separated patterns
	Options  SearchOptions `json:"options"`
}

// Validate checks the request invariants that can be verified without
// resolving patterns
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Term) == "" {
		return mbrerrors.New(mbrerrors.KindInvalidRequest, "", "search term cannot be empty")
	}
	if r.Options.AfterContext < 0 || r.Options.AfterContext > MaxAfterContext {
		return mbrerrors.Newf(mbrerrors.KindInvalidRequest, "",
			"after context must be between 0 and %d, got %d", MaxAfterContext, r.Options.AfterContext)
	}
	if r.Options.MaxMatches < 0 {
		return mbrerrors.Newf(mbrerrors.KindInvalidRequest, "", "max matches cannot be negative, got %d", r.Options.MaxMatches)
	}
	if r.Options.UseRegex {
		if _, err := regexp.Compile(r.Term); err != nil {
			return mbrerrors.Wrap(mbrerrors.KindInvalidRequest, "", fmt.Errorf("invalid regular expression: %w", err))
		}
	}
	return nil
}

// HitLine is one line reported by the search tool
type HitLine struct {
	LineNumber int    `json:"line"`
	Content    string `json:"content"`
	IsContext  bool   `json:"is_context,omitempty"`
}

// Hit groups every line found in one member
type Hit struct {
	ID           string    `json:"id"`
	ResourcePath string    `json:"path"`
	Label        string    `json:"label"`
	Lines        []HitLine `json:"lines"`
}

// NewHit creates an empty hit for a resource path
func NewHit(resourcePath string) *Hit {
	return &Hit{
		ID:           fmt.Sprintf("%016x", xxhash.Sum64String(resourcePath)),
		ResourcePath: resourcePath,
		Label:        qsys.DisplayLabel(resourcePath),
	}
}

// Add inserts a line keeping Lines sorted by line number. A line number seen
// twice is kept once; a match line replaces a context line.
func (h *Hit) Add(line HitLine) {
	n := len(h.Lines)
	if n == 0 || h.Lines[n-1].LineNumber < line.LineNumber {
		h.Lines = append(h.Lines, line)
		return
	}

	i := sort.Search(n, func(i int) bool { return h.Lines[i].LineNumber >= line.LineNumber })
	if i < n && h.Lines[i].LineNumber == line.LineNumber {
		if h.Lines[i].IsContext && !line.IsContext {
			h.Lines[i] = line
		}
		return
	}
	h.Lines = append(h.Lines, HitLine{})
	copy(h.Lines[i+1:], h.Lines[i:])
	h.Lines[i] = line
}

// Merge folds the lines of other into h
func (h *Hit) Merge(other *Hit) {
	for _, line := range other.Lines {
		h.Add(line)
	}
}

// MatchCount counts non-context lines
func (h *Hit) MatchCount() int {
	count := 0
	for _, l := range h.Lines {
		if !l.IsContext {
			count++
		}
	}
	return count
}

// Clone returns a deep copy
func (h *Hit) Clone() *Hit {
	c := *h
	c.Lines = append([]HitLine(nil), h.Lines...)
	return &c
}

// PatternError records why one pattern of a search failed
type PatternError struct {
	Pattern string         `json:"pattern"`
	Kind    mbrerrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// NewPatternError converts err into a PatternError for pattern
func NewPatternError(pattern string, err error) PatternError {
	kind := mbrerrors.KindOf(err)
	if kind == "" {
		kind = mbrerrors.KindToolFailure
	}
	msg := err.Error()
	if se, ok := err.(*mbrerrors.SearchError); ok {
		msg = se.Message
	}
	return PatternError{Pattern: pattern, Kind: kind, Message: msg}
}

func (e PatternError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pattern, e.Message)
}

// SearchResult is the aggregate outcome of one search request. Hits are
// unique per resource path and sorted by it.
type SearchResult struct {
	SearchID  string         `json:"search_id"`
	Term      string         `json:"term"`
	Options   SearchOptions  `json:"options"`
	Timestamp time.Time      `json:"timestamp"`
	Hits      []*Hit         `json:"hits"`
	Errors    []PatternError `json:"errors,omitempty"`
	Cancelled []string       `json:"cancelled,omitempty"` // neither success nor failure
	Truncated bool           `json:"truncated,omitempty"` // the match limit was reached in at least one member
	Patterns  int            `json:"patterns"`
}

// MatchCount counts match lines across all hits
func (r *SearchResult) MatchCount() int {
	total := 0
	for _, h := range r.Hits {
		total += h.MatchCount()
	}
	return total
}

// FailureSummary describes failed patterns for display, or "" when none failed
func (r *SearchResult) FailureSummary() string {
	switch len(r.Errors) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Search of %s failed: %s", r.Errors[0].Pattern, r.Errors[0].Message)
	default:
		return fmt.Sprintf("%d of %d search locations failed", len(r.Errors), r.Patterns)
	}
}

// Clone returns a deep copy, used for progress snapshots
func (r *SearchResult) Clone() *SearchResult {
	c := *r
	c.Hits = make([]*Hit, len(r.Hits))
	for i, h := range r.Hits {
		c.Hits[i] = h.Clone()
	}
	c.Errors = append([]PatternError(nil), r.Errors...)
	c.Cancelled = append([]string(nil), r.Cancelled...)
	return &c
}

// SortHits orders hits by resource path using an ordinal compare
func SortHits(hits []*Hit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].ResourcePath < hits[j].ResourcePath })
}

// ProgressFunc is called after each pattern settles
type ProgressFunc func(completed, total int, snapshot *SearchResult)
