// Package qsys maps library/file/member location patterns to the integrated
// file system paths of the QSYS.LIB file system and back.
package qsys

import (
	"strings"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
)

const (
	Root          = "/QSYS.LIB"
	LibrarySuffix = ".LIB"
	FileSuffix    = ".FILE"
	MemberSuffix  = ".MBR"

	// Wildcard is only valid as the last character of a name segment
	Wildcard = "*"

	// AllLibrariesPath is searched for the *ALL / ALL sentinel
	AllLibrariesPath = Root + "/*" + LibrarySuffix
)

// Level tells how deep a pattern reaches into the library/file/member hierarchy
type Level int

const (
	LevelAllLibraries Level = iota
	LevelLibrary
	LevelFile
	LevelMember
)

func (l Level) String() string {
	switch l {
	case LevelAllLibraries:
		return "all-libraries"
	case LevelLibrary:
		return "library"
	case LevelFile:
		return "file"
	case LevelMember:
		return "member"
	default:
		return "unknown"
	}
}

// SearchPattern is a single normalized location pattern
type SearchPattern struct {
	Raw     string
	Level   Level
	Library string
	File    string
	Member  string
	Path    string
}

// MemberPath identifies one source member
type MemberPath struct {
	Library string
	File    string
	Member  string
}

// Pattern renders the member as a LIB/FILE/MEMBER pattern
func (m MemberPath) Pattern() string {
	return m.Library + "/" + m.File + "/" + m.Member
}

// Path renders the member as a resource path
func (m MemberPath) Path() string {
	return Root + "/" + m.Library + LibrarySuffix + "/" + m.File + FileSuffix + "/" + m.Member + MemberSuffix
}

// Compile validates and normalizes a location pattern
func Compile(pattern string) (SearchPattern, error) {
	p := strings.ToUpper(strings.TrimSpace(pattern))
	sp := SearchPattern{Raw: pattern}

	if p == "*ALL" || p == "ALL" {
		sp.Level = LevelAllLibraries
		sp.Library = Wildcard
		sp.Path = AllLibrariesPath
		return sp, nil
	}

	segments := strings.Split(p, "/")
	if len(segments) > 3 {
		return sp, mbrerrors.Newf(mbrerrors.KindInvalidPattern, pattern,
			"expected LIBRARY[/FILE[/MEMBER]], got %d segments", len(segments))
	}

	for i, seg := range segments {
		if seg == "*ALL" {
			seg = Wildcard
			segments[i] = seg
		}
		if err := validateSegment(pattern, seg); err != nil {
			return sp, err
		}
	}

	sp.Library = segments[0]
	sp.Level = LevelLibrary
	sp.Path = Root + "/" + sp.Library + LibrarySuffix
	if len(segments) > 1 {
		sp.File = segments[1]
		sp.Level = LevelFile
		sp.Path += "/" + sp.File + FileSuffix
	}
	if len(segments) > 2 {
		sp.Member = segments[2]
		sp.Level = LevelMember
		sp.Path += "/" + sp.Member + MemberSuffix
	}
	return sp, nil
}

// Resolve maps a location pattern to the resource path the search tool reads
func Resolve(pattern string) (string, error) {
	sp, err := Compile(pattern)
	if err != nil {
		return "", err
	}
	return sp.Path, nil
}

func validateSegment(pattern, seg string) error {
	if seg == "" {
		return mbrerrors.New(mbrerrors.KindInvalidPattern, pattern, "empty name segment")
	}
	for i, r := range seg {
		switch {
		case r == '*':
			if i != len(seg)-1 {
				return mbrerrors.Newf(mbrerrors.KindInvalidPattern, pattern,
					"wildcard must be the last character of %q", seg)
			}
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '$', r == '#', r == '@', r == '_', r == '.':
		default:
			return mbrerrors.Newf(mbrerrors.KindInvalidPattern, pattern,
				"invalid character %q in name %q", r, seg)
		}
	}
	return nil
}

// Parse splits a member resource path into its names. Only the full
// /QSYS.LIB/LIB.LIB/FILE.FILE/MBR.MBR shape is accepted.
func Parse(resourcePath string) (MemberPath, error) {
	var mp MemberPath
	trimmed := strings.TrimSpace(resourcePath)
	if !strings.HasPrefix(trimmed, "/") {
		return mp, mbrerrors.New(mbrerrors.KindInvalidPath, resourcePath, "resource path must be absolute")
	}

	parts := strings.Split(trimmed[1:], "/")
	if len(parts) != 4 || !strings.EqualFold(parts[0], strings.TrimPrefix(Root, "/")) {
		return mp, mbrerrors.New(mbrerrors.KindInvalidPath, resourcePath, "expected /QSYS.LIB/<LIB>.LIB/<FILE>.FILE/<MBR>.MBR")
	}

	var ok bool
	if mp.Library, ok = cutSuffixFold(parts[1], LibrarySuffix); !ok {
		return mp, mbrerrors.New(mbrerrors.KindInvalidPath, resourcePath, "library segment must end in .LIB")
	}
	if mp.File, ok = cutSuffixFold(parts[2], FileSuffix); !ok {
		return mp, mbrerrors.New(mbrerrors.KindInvalidPath, resourcePath, "file segment must end in .FILE")
	}
	if mp.Member, ok = cutSuffixFold(parts[3], MemberSuffix); !ok {
		return mp, mbrerrors.New(mbrerrors.KindInvalidPath, resourcePath, "member segment must end in .MBR")
	}
	return mp, nil
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) <= len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return "", false
	}
	return strings.ToUpper(s[:len(s)-len(suffix)]), true
}

// DisplayLabel renders a resource path as LIB/FILE/MEMBER, falling back to
// the raw path when it is not a member path.
func DisplayLabel(resourcePath string) string {
	mp, err := Parse(resourcePath)
	if err != nil {
		return resourcePath
	}
	return mp.Pattern()
}
