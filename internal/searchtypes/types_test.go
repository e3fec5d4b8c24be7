package searchtypes

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
)

const pgm1 = "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/PGM1.MBR"

func TestSearchRequestValidate(t *testing.T) {
	valid := SearchRequest{Term: "DCL-S", Patterns: []string{"ACME"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mod  func(r *SearchRequest)
	}{
		{"empty term", func(r *SearchRequest) { r.Term = "" }},
		{"blank term", func(r *SearchRequest) { r.Term = "   " }},
		{"negative context", func(r *SearchRequest) { r.Options.AfterContext = -1 }},
		{"context too large", func(r *SearchRequest) { r.Options.AfterContext = MaxAfterContext + 1 }},
		{"negative max matches", func(r *SearchRequest) { r.Options.MaxMatches = -3 }},
		{"bad regex", func(r *SearchRequest) { r.Term = "DCL-(S"; r.Options.UseRegex = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mod(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, mbrerrors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestSearchRequestValidateBoundaries(t *testing.T) {
	r := SearchRequest{Term: "X", Options: SearchOptions{AfterContext: MaxAfterContext}}
	assert.NoError(t, r.Validate())

	// Not a valid regex, but fine as a fixed string
	r = SearchRequest{Term: "DCL-(S"}
	assert.NoError(t, r.Validate())
}

func TestNewHit(t *testing.T) {
	h := NewHit(pgm1)
	assert.Equal(t, pgm1, h.ResourcePath)
	assert.Equal(t, "ACME/QRPGLESRC/PGM1", h.Label)
	assert.Len(t, h.ID, 16)
	assert.Equal(t, h.ID, NewHit(pgm1).ID, "id must be stable for a path")
	assert.NotEqual(t, h.ID, NewHit("/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/PGM2.MBR").ID)
}

func TestHitAddKeepsOrder(t *testing.T) {
	h := NewHit(pgm1)
	h.Add(HitLine{LineNumber: 10, Content: "a"})
	h.Add(HitLine{LineNumber: 3, Content: "b"})
	h.Add(HitLine{LineNumber: 7, Content: "c", IsContext: true})
	h.Add(HitLine{LineNumber: 12, Content: "d"})

	var numbers []int
	for _, l := range h.Lines {
		numbers = append(numbers, l.LineNumber)
	}
	assert.Equal(t, []int{3, 7, 10, 12}, numbers)
}

func TestHitAddMatchWinsOverContext(t *testing.T) {
	h := NewHit(pgm1)
	h.Add(HitLine{LineNumber: 5, Content: "X = 1;", IsContext: true})
	h.Add(HitLine{LineNumber: 5, Content: "X = 1;"})
	require.Len(t, h.Lines, 1)
	assert.False(t, h.Lines[0].IsContext)

	// A later context line for the same number does not demote the match
	h.Add(HitLine{LineNumber: 5, Content: "X = 1;", IsContext: true})
	require.Len(t, h.Lines, 1)
	assert.False(t, h.Lines[0].IsContext)
}

func TestHitMerge(t *testing.T) {
	a := NewHit(pgm1)
	a.Add(HitLine{LineNumber: 10, Content: "DCL-S X;"})
	a.Add(HitLine{LineNumber: 11, Content: "X = 1;", IsContext: true})

	b := NewHit(pgm1)
	b.Add(HitLine{LineNumber: 2, Content: "CTL-OPT;"})
	b.Add(HitLine{LineNumber: 10, Content: "DCL-S X;"})
	b.Add(HitLine{LineNumber: 11, Content: "X = 1;"})

	a.Merge(b)
	require.Len(t, a.Lines, 3)
	assert.Equal(t, 2, a.Lines[0].LineNumber)
	assert.Equal(t, 10, a.Lines[1].LineNumber)
	assert.Equal(t, 11, a.Lines[2].LineNumber)
	assert.False(t, a.Lines[2].IsContext)
	assert.Equal(t, 3, a.MatchCount())
}

func TestHitClone(t *testing.T) {
	h := NewHit(pgm1)
	h.Add(HitLine{LineNumber: 1, Content: "a"})
	c := h.Clone()
	c.Add(HitLine{LineNumber: 2, Content: "b"})
	c.Lines[0].Content = "changed"

	assert.Len(t, h.Lines, 1)
	assert.Equal(t, "a", h.Lines[0].Content)
}

func TestNewPatternError(t *testing.T) {
	pe := NewPatternError("ACME", mbrerrors.New(mbrerrors.KindPermissionDenied, "ACME", "Permission denied"))
	assert.Equal(t, "ACME", pe.Pattern)
	assert.Equal(t, mbrerrors.KindPermissionDenied, pe.Kind)
	assert.Equal(t, "Permission denied", pe.Message)
	assert.Equal(t, "ACME: Permission denied", pe.Error())

	pe = NewPatternError("BETA", errors.New("boom"))
	assert.Equal(t, mbrerrors.KindToolFailure, pe.Kind)
	assert.Equal(t, "boom", pe.Message)
}

func TestFailureSummary(t *testing.T) {
	r := &SearchResult{Patterns: 3}
	assert.Empty(t, r.FailureSummary())

	r.Errors = []PatternError{{Pattern: "ACME", Kind: mbrerrors.KindResourceNotFound, Message: "No such file or directory"}}
	assert.Equal(t, "Search of ACME failed: No such file or directory", r.FailureSummary())

	r.Errors = append(r.Errors, PatternError{Pattern: "BETA", Kind: mbrerrors.KindToolFailure, Message: "exit code 2"})
	assert.Equal(t, "2 of 3 search locations failed", r.FailureSummary())
}

func TestSearchResultCloneIsDeep(t *testing.T) {
	h := NewHit(pgm1)
	h.Add(HitLine{LineNumber: 10, Content: "DCL-S X;"})
	r := &SearchResult{
		SearchID:  "s1",
		Term:      "X",
		Timestamp: time.Now(),
		Hits:      []*Hit{h},
		Errors:    []PatternError{{Pattern: "BETA"}},
		Cancelled: []string{"GAMMA"},
		Patterns:  3,
	}

	c := r.Clone()
	c.Hits[0].Add(HitLine{LineNumber: 20, Content: "more"})
	c.Errors[0].Pattern = "changed"
	c.Cancelled[0] = "changed"

	assert.Len(t, r.Hits[0].Lines, 1)
	assert.Equal(t, "BETA", r.Errors[0].Pattern)
	assert.Equal(t, "GAMMA", r.Cancelled[0])
	assert.Equal(t, 1, r.MatchCount())
	assert.Equal(t, 2, c.MatchCount())
}

func TestSortHits(t *testing.T) {
	hits := []*Hit{
		NewHit("/QSYS.LIB/BETA.LIB/QCLSRC.FILE/A.MBR"),
		NewHit("/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/Z.MBR"),
		NewHit("/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/B.MBR"),
	}
	SortHits(hits)
	assert.Equal(t, "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/B.MBR", hits[0].ResourcePath)
	assert.Equal(t, "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/Z.MBR", hits[1].ResourcePath)
	assert.Equal(t, "/QSYS.LIB/BETA.LIB/QCLSRC.FILE/A.MBR", hits[2].ResourcePath)
}
