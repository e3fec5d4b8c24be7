package testhelpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SettingsBuilder provides a fluent API for writing .mbrgrep.kdl files in tests.
// It produces file content rather than a config value so packages below the
// config package can use it without an import cycle.
// Usage:
//
//	dir := testhelpers.NewSettingsBuilder().
//		WithMaxParallel(2).
//		WithExclusions("/QSYS.LIB/QGPL.LIB/**").
//		WriteDir(t)
type SettingsBuilder struct {
	search     []string
	connection []string
	exclusions []string
	extra      []string
}

// NewSettingsBuilder starts from fast, local defaults
func NewSettingsBuilder() *SettingsBuilder {
	return &SettingsBuilder{
		search: []string{"cache_ttl 0"},
	}
}

// WithMaxParallel sets max_parallel_searches
func (b *SettingsBuilder) WithMaxParallel(n int) *SettingsBuilder {
	b.search = append(b.search, fmt.Sprintf("max_parallel_searches %d", n))
	return b
}

// WithAfterContext sets after_context
func (b *SettingsBuilder) WithAfterContext(n int) *SettingsBuilder {
	b.search = append(b.search, fmt.Sprintf("after_context %d", n))
	return b
}

// WithGrepPath sets grep_path
func (b *SettingsBuilder) WithGrepPath(path string) *SettingsBuilder {
	b.search = append(b.search, fmt.Sprintf("grep_path %q", path))
	return b
}

// WithEnvironment sets environment
func (b *SettingsBuilder) WithEnvironment(env string) *SettingsBuilder {
	b.search = append(b.search, fmt.Sprintf("environment %q", env))
	return b
}

// WithCaseSensitive sets case_sensitive
func (b *SettingsBuilder) WithCaseSensitive(v bool) *SettingsBuilder {
	b.search = append(b.search, fmt.Sprintf("case_sensitive %t", v))
	return b
}

// WithHost adds a connection block
func (b *SettingsBuilder) WithHost(host, user string) *SettingsBuilder {
	b.connection = append(b.connection, fmt.Sprintf("host %q", host), fmt.Sprintf("user %q", user))
	return b
}

// WithExclusions adds exclude patterns
func (b *SettingsBuilder) WithExclusions(patterns ...string) *SettingsBuilder {
	b.exclusions = append(b.exclusions, patterns...)
	return b
}

// WithRaw appends a raw top-level line, useful for malformed or unknown settings
func (b *SettingsBuilder) WithRaw(line string) *SettingsBuilder {
	b.extra = append(b.extra, line)
	return b
}

// Build renders the KDL document
func (b *SettingsBuilder) Build() string {
	var sb strings.Builder
	writeBlock(&sb, "search", b.search)
	writeBlock(&sb, "connection", b.connection)
	if len(b.exclusions) > 0 {
		sb.WriteString("exclude {\n")
		for _, p := range b.exclusions {
			fmt.Fprintf(&sb, "    %q\n", p)
		}
		sb.WriteString("}\n")
	}
	for _, line := range b.extra {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteDir writes .mbrgrep.kdl into a fresh temp directory and returns it
func (b *SettingsBuilder) WriteDir(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	b.WriteTo(t, dir)
	return dir
}

// WriteTo writes .mbrgrep.kdl into dir and returns the file path
func (b *SettingsBuilder) WriteTo(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, ".mbrgrep.kdl")
	if err := os.WriteFile(path, []byte(b.Build()), 0644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	return path
}

func writeBlock(sb *strings.Builder, name string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString(name + " {\n")
	for _, line := range lines {
		sb.WriteString("    " + line + "\n")
	}
	sb.WriteString("}\n")
}
