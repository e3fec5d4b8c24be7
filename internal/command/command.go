// Package command builds the shell command line that runs the line search
// utility against one resolved resource path.
package command

import (
	"strconv"
	"strings"

	"github.com/standardbeagle/mbrgrep/internal/qsys"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// DefaultGrepPath is the PASE location of the GNU grep package
const DefaultGrepPath = "/QOpenSys/pkgs/bin/grep"

// CommandSpec is one fully assembled invocation of the search utility
type CommandSpec struct {
	Executable string
	Flags      []string
	Term       string // already shell-escaped
	Path       string // already shell-escaped
}

// String renders the command as "<executable> <flags> <term> <path>".
// The last flag is -e, which introduces the term.
func (c CommandSpec) String() string {
	var b strings.Builder
	b.WriteString(c.Executable)
	for _, f := range c.Flags {
		b.WriteByte(' ')
		b.WriteString(f)
	}
	b.WriteByte(' ')
	b.WriteString(c.Term)
	b.WriteByte(' ')
	b.WriteString(c.Path)
	return b.String()
}

// Build assembles the command for one location pattern. Flags are emitted in
// a fixed order so identical inputs produce identical command lines:
// case sensitivity, search mode, recursion, line numbers, file names,
// match limit, after context. -e always comes last so a term starting
// with '-' is never read as an option.
func Build(pattern string, term string, opts searchtypes.SearchOptions, grepPath string) (CommandSpec, error) {
	resourcePath, err := qsys.Resolve(pattern)
	if err != nil {
		return CommandSpec{}, err
	}
	return BuildForPath(resourcePath, term, opts, grepPath), nil
}

// BuildForPath assembles the command for an already resolved resource path
func BuildForPath(resourcePath string, term string, opts searchtypes.SearchOptions, grepPath string) CommandSpec {
	if grepPath == "" {
		grepPath = DefaultGrepPath
	}

	flags := make([]string, 0, 10)
	if !opts.CaseSensitive {
		flags = append(flags, "-i")
	}
	if opts.UseRegex {
		flags = append(flags, "-E")
	} else {
		flags = append(flags, "-F")
	}
	// Recursion and file name prefixes are always forced, the parser depends on them
	flags = append(flags, "-r", "-n", "-H")
	if opts.MaxMatches > 0 {
		flags = append(flags, "-m", strconv.Itoa(opts.MaxMatches))
	}
	if opts.AfterContext > 0 {
		flags = append(flags, "-A", strconv.Itoa(opts.AfterContext))
	}
	flags = append(flags, "-e")

	return CommandSpec{
		Executable: grepPath,
		Flags:      flags,
		Term:       ShellQuote(term),
		Path:       EscapePath(resourcePath),
	}
}

// ShellQuote wraps s in single quotes. Embedded single quotes are closed,
// emitted inside double quotes and reopened: ' becomes '"'"'.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapePath backslash-escapes every byte outside [A-Za-z0-9_./*-] so the
// remote shell still expands a trailing * but treats $, # and @ literally.
func EscapePath(path string) string {
	var b strings.Builder
	b.Grow(len(path) + 8)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if !isPathSafe(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isPathSafe(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '.', c == '/', c == '*', c == '-':
		return true
	}
	return false
}
