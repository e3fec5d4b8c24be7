package config

import (
	"fmt"

	"github.com/hbollon/go-edlib"
)

// Keys accepted in each section of a settings file
var (
	topLevelKeys   = []string{"search", "connection", "exclude"}
	searchKeys     = []string{"max_parallel_searches", "case_sensitive", "use_regex", "after_context", "max_matches", "grep_path", "environment", "cache_ttl"}
	connectionKeys = []string{"host", "port", "user", "key_file", "password_env", "known_hosts", "connect_timeout"}
)

// maxSuggestDistance bounds how far a misspelling may be from a known key
const maxSuggestDistance = 3

// findClosestMatch finds the known key with the smallest Levenshtein distance
func findClosestMatch(input string, candidates []string) (string, int) {
	bestMatch := ""
	bestDistance := 1000

	for _, candidate := range candidates {
		distance := edlib.LevenshteinDistance(input, candidate)
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = candidate
		}
	}

	return bestMatch, bestDistance
}

// unknownKeyWarning describes an unrecognised key, naming the closest
// known key when one is near enough
func unknownKeyWarning(section, key string, candidates []string) string {
	where := key
	if section != "" {
		where = section + "." + key
	}
	if match, distance := findClosestMatch(key, candidates); match != "" && distance <= maxSuggestDistance {
		return fmt.Sprintf("unknown setting '%s' (did you mean '%s'?)", where, match)
	}
	return fmt.Sprintf("unknown setting '%s'", where)
}
