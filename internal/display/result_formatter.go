package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/mbrgrep/internal/search"
	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

// Output formats
const (
	FormatText    = "text"
	FormatCompact = "compact"
	FormatJSON    = "json"
)

// ResultFormatter formats search results for display
type ResultFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls result formatting
type FormatterOptions struct {
	Format      string // "text", "json", "compact"
	ShowContext bool   // Show after-context lines
	ShowPaths   bool   // Show IFS paths instead of LIB/FILE/MEMBER labels
	MaxLines    int    // Maximum lines per member, 0 = all
	Indent      string // Indentation string
}

// NewResultFormatter creates a new result formatter
func NewResultFormatter(options FormatterOptions) *ResultFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &ResultFormatter{options: options}
}

// Format formats a search result for display
func (rf *ResultFormatter) Format(result *searchtypes.SearchResult) string {
	if result == nil {
		return "No search results available"
	}

	switch rf.options.Format {
	case FormatJSON:
		return rf.formatJSON(result)
	case FormatCompact:
		return rf.formatCompact(result)
	default:
		return rf.formatText(result)
	}
}

// formatText renders one tree per member with its lines as branches
func (rf *ResultFormatter) formatText(result *searchtypes.SearchResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Search results for '%s'\n", result.Term)
	fmt.Fprintf(&sb, "%s in %s across %s\n\n",
		plural(result.MatchCount(), "match", "matches"),
		plural(len(result.Hits), "member", "members"),
		plural(result.Patterns, "location", "locations"))

	if len(result.Hits) == 0 {
		sb.WriteString("No matches found\n")
	}

	for _, hit := range result.Hits {
		rf.formatHit(&sb, hit)
	}

	rf.formatFooter(&sb, result)
	return sb.String()
}

func (rf *ResultFormatter) formatHit(sb *strings.Builder, hit *searchtypes.Hit) {
	lines := rf.visibleLines(hit)

	sb.WriteString("→ ")
	sb.WriteString(rf.name(hit))
	fmt.Fprintf(sb, " (%s)\n", plural(hit.MatchCount(), "match", "matches"))

	for i, line := range lines {
		branch := "├─→ "
		if i == len(lines)-1 {
			branch = "└─→ "
		}
		sep := ":"
		if line.IsContext {
			sep = "-"
		}
		fmt.Fprintf(sb, "%s%s%d%s %s\n", rf.options.Indent, branch, line.LineNumber, sep, line.Content)
	}

	if hidden := rf.hiddenCount(hit, lines); hidden > 0 {
		fmt.Fprintf(sb, "%s    (+%d more)\n", rf.options.Indent, hidden)
	}
}

// visibleLines applies ShowContext and MaxLines
func (rf *ResultFormatter) visibleLines(hit *searchtypes.Hit) []searchtypes.HitLine {
	out := make([]searchtypes.HitLine, 0, len(hit.Lines))
	for _, line := range hit.Lines {
		if line.IsContext && !rf.options.ShowContext {
			continue
		}
		if rf.options.MaxLines > 0 && len(out) >= rf.options.MaxLines {
			break
		}
		out = append(out, line)
	}
	return out
}

func (rf *ResultFormatter) hiddenCount(hit *searchtypes.Hit, shown []searchtypes.HitLine) int {
	total := 0
	for _, line := range hit.Lines {
		if !line.IsContext || rf.options.ShowContext {
			total++
		}
	}
	return total - len(shown)
}

func (rf *ResultFormatter) formatFooter(sb *strings.Builder, result *searchtypes.SearchResult) {
	if result.Truncated {
		fmt.Fprintf(sb, "\nResults truncated: the match limit of %d per member was reached\n", result.Options.MaxMatches)
	}

	if len(result.Cancelled) > 0 {
		fmt.Fprintf(sb, "\nCancelled: %s\n", strings.Join(result.Cancelled, ", "))
	}

	if summary := result.FailureSummary(); summary != "" {
		sb.WriteString("\n")
		sb.WriteString(summary)
		sb.WriteString("\n")
		if len(result.Errors) > 1 {
			for _, e := range result.Errors {
				fmt.Fprintf(sb, "%s- %s: %s (%s)\n", rf.options.Indent, e.Pattern, e.Message, e.Kind)
			}
		}
	}
}

// formatCompact renders grep style lines: NAME:LINE:CONTENT
func (rf *ResultFormatter) formatCompact(result *searchtypes.SearchResult) string {
	var sb strings.Builder
	for _, hit := range result.Hits {
		name := rf.name(hit)
		for _, line := range rf.visibleLines(hit) {
			sep := ":"
			if line.IsContext {
				sep = "-"
			}
			fmt.Fprintf(&sb, "%s%s%d%s%s\n", name, sep, line.LineNumber, sep, line.Content)
		}
	}
	if summary := result.FailureSummary(); summary != "" {
		fmt.Fprintf(&sb, "# %s\n", summary)
	}
	return sb.String()
}

func (rf *ResultFormatter) formatJSON(result *searchtypes.SearchResult) string {
	data, err := json.MarshalIndent(result, "", rf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func (rf *ResultFormatter) name(hit *searchtypes.Hit) string {
	if rf.options.ShowPaths || hit.Label == "" {
		return hit.ResourcePath
	}
	return hit.Label
}

// FormatProgress renders a one-line progress update
func FormatProgress(completed, total int, snapshot *searchtypes.SearchResult) string {
	line := fmt.Sprintf("[%d/%d] %s in %s",
		completed, total,
		plural(snapshot.MatchCount(), "match", "matches"),
		plural(len(snapshot.Hits), "member", "members"))
	if n := len(snapshot.Errors); n > 0 {
		line += fmt.Sprintf(", %s", plural(n, "failure", "failures"))
	}
	return line
}

// FormatPlan lists the command each pattern resolves to
func FormatPlan(plan []search.PlannedCommand) string {
	var sb strings.Builder
	for _, p := range plan {
		fmt.Fprintf(&sb, "%s (%s)\n", p.Pattern, p.Level)
		fmt.Fprintf(&sb, "  path:    %s\n", p.ResourcePath)
		fmt.Fprintf(&sb, "  command: %s\n", p.Line())
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
