package search

import (
	"strings"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
	"github.com/standardbeagle/mbrgrep/internal/parser"
	"github.com/standardbeagle/mbrgrep/internal/remote"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// outcome is the settled state of one pattern: hits, an error, or cancelled
type outcome struct {
	index     int
	pattern   string
	hits      []*searchtypes.Hit
	err       error
	cancelled bool
	truncated bool
}

// aggregate folds outcomes into a result. Only the Execute loop touches it.
type aggregate struct {
	result *searchtypes.SearchResult
	byPath map[string]*searchtypes.Hit
}

func (a *aggregate) add(oc outcome) {
	switch {
	case oc.cancelled:
		a.result.Cancelled = append(a.result.Cancelled, oc.pattern)
	case oc.err != nil:
		a.result.Errors = append(a.result.Errors, searchtypes.NewPatternError(oc.pattern, oc.err))
	default:
		for _, h := range oc.hits {
			if existing, ok := a.byPath[h.ResourcePath]; ok {
				existing.Merge(h)
				continue
			}
			a.byPath[h.ResourcePath] = h
			a.result.Hits = append(a.result.Hits, h)
		}
		if oc.truncated {
			a.result.Truncated = true
		}
	}
}

// classify maps a tool result to hits or a pattern error by exit code.
// Failures are refined by stderr text when it is recognized.
func classify(pattern string, res *remote.Result) ([]*searchtypes.Hit, error) {
	switch {
	case res.ExitCode == ExitMatches:
		return parser.Parse(res.Stdout), nil
	case res.ExitCode == ExitNoMatches:
		return nil, nil
	}

	stderr := strings.TrimSpace(res.Stderr)
	switch {
	case strings.Contains(stderr, stderrPermissionDenied):
		return nil, mbrerrors.New(mbrerrors.KindPermissionDenied, pattern, stderr)
	case strings.Contains(stderr, stderrNotFound):
		return nil, mbrerrors.New(mbrerrors.KindResourceNotFound, pattern, stderr)
	case stderr != "":
		return nil, mbrerrors.New(mbrerrors.KindToolFailure, pattern, stderr)
	default:
		return nil, mbrerrors.Newf(mbrerrors.KindToolFailure, pattern, "exit code %d", res.ExitCode)
	}
}
