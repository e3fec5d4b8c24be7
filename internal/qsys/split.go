package qsys

import (
	"strings"

	mbrerrors "github.com/standardbeagle/mbrgrep/internal/errors"
)

// Split normalizes a comma separated list of location patterns into trimmed,
// non-empty entries. Order and duplicates are preserved since two equal
// entries can still be requested on purpose.
func Split(raw string) ([]string, error) {
	out := splitInto(nil, raw)
	if len(out) == 0 {
		return nil, mbrerrors.New(mbrerrors.KindInvalidRequest, raw, "no search location given")
	}
	return out, nil
}

// SplitAll applies Split to every raw entry and flattens the result.
func SplitAll(raws []string) ([]string, error) {
	var out []string
	for _, raw := range raws {
		out = splitInto(out, raw)
	}
	if len(out) == 0 {
		return nil, mbrerrors.New(mbrerrors.KindInvalidRequest, "", "no search location given")
	}
	return out, nil
}

func splitInto(out []string, raw string) []string {
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
