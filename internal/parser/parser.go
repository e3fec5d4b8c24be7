// Package parser turns the textual output of the line search utility into
// hits grouped by member.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// Separator is printed by the search utility between context groups
const Separator = "--"

var (
	// Member paths end in .MBR. The non-greedy path group stops at the
	// first .MBR followed by a complete :N: or -N- prefix, so member content
	// holding another "X.MBR:3:" never moves the split point.
	memberLine = regexp.MustCompile(`(?i)^(.+?\.MBR)(?::(\d+):|-(\d+)-)(.*)$`)

	// Fallbacks for stream files and other IFS paths
	genericMatchLine   = regexp.MustCompile(`^([^:]+):(\d+):(.*)$`)
	genericContextLine = regexp.MustCompile(`^(/[^:]+?)-(\d+)-(.*)$`)
)

// Parse reads stdout and returns one hit per resource path in first-seen
// order. Lines that match neither the match nor the context shape are
// skipped.
func Parse(stdout string) []*searchtypes.Hit {
	var hits []*searchtypes.Hit
	byPath := make(map[string]*searchtypes.Hit)

	for _, raw := range strings.Split(stdout, "\n") {
		line := strings.TrimSuffix(raw, "\r")
		if line == "" || line == Separator {
			continue
		}

		path, hitLine, ok := ParseLine(line)
		if !ok {
			continue
		}

		hit, exists := byPath[path]
		if !exists {
			hit = searchtypes.NewHit(path)
			byPath[path] = hit
			hits = append(hits, hit)
		}
		hit.Add(hitLine)
	}
	return hits
}

// ParseLine recognizes a single output line
func ParseLine(line string) (string, searchtypes.HitLine, bool) {
	if m := memberLine.FindStringSubmatch(line); m != nil {
		// Exactly one of the two line number groups is set
		if m[2] != "" {
			return build(m[1], m[2], m[4], false)
		}
		return build(m[1], m[3], m[4], true)
	}
	if m := genericMatchLine.FindStringSubmatch(line); m != nil {
		return build(m[1], m[2], m[3], false)
	}
	if m := genericContextLine.FindStringSubmatch(line); m != nil {
		return build(m[1], m[2], m[3], true)
	}
	return "", searchtypes.HitLine{}, false
}

func build(path, number, content string, isContext bool) (string, searchtypes.HitLine, bool) {
	n, err := strconv.Atoi(number)
	if err != nil || n <= 0 {
		return "", searchtypes.HitLine{}, false
	}
	return path, searchtypes.HitLine{LineNumber: n, Content: content, IsContext: isContext}, true
}
