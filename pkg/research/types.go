package research

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailure marks backend output that could not be read as a query list.
var ErrParseFailure = errors.New("parse failure")

// Document is a normalized search hit. Metadata always carries "source".
type Document struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResult is what the advanced search hands back to callers.
type SearchResult struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ParseResult is the outcome of reading a query list from free text. When
// Fallback is set, Queries holds the original goal only and Err says why.
type ParseResult struct {
	Queries  []string
	Fallback bool
	Err      error
}

// Ok reports whether the list was parsed from the text itself.
func (p ParseResult) Ok() bool { return !p.Fallback }

var listMarker = regexp.MustCompile(`^(?:[-*•]+\s*|\d+[.)]\s+|\(\d+\)\s+)`)

// splitLines splits text on line breaks, strips list markers and surrounding
// quotes, and drops blank lines. limit <= 0 keeps every line.
func splitLines(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.Trim(line, `"`))
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ParsePlan reads the planning output as one query per line. An output with no
// usable line degrades to the goal as the only query.
func ParsePlan(raw, goal string) ParseResult {
	queries := splitLines(raw, 0)
	if len(queries) == 0 {
		return ParseResult{
			Queries:  []string{strings.TrimSpace(goal)},
			Fallback: true,
			Err:      fmt.Errorf("%w: plan output has no queries", ErrParseFailure),
		}
	}
	return ParseResult{Queries: queries}
}
