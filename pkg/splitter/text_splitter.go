// Package splitter trims long document text to bounded excerpts.
package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Excerpter cuts text down to at most MaxChars runes, preferring paragraph,
// line and word boundaries.
type Excerpter struct {
	splitter textsplitter.TextSplitter
	maxChars int
}

// NewExcerpter creates an Excerpter. maxChars <= 0 disables trimming.
func NewExcerpter(maxChars int) *Excerpter {
	if maxChars <= 0 {
		return &Excerpter{}
	}
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxChars),
		textsplitter.WithChunkOverlap(0),
	)
	return &Excerpter{splitter: ts, maxChars: maxChars}
}

// Excerpt returns text unchanged when it fits, otherwise its first chunk
// followed by "...".
func (e *Excerpter) Excerpt(text string) string {
	if e == nil || e.maxChars <= 0 || utf8.RuneCountInString(text) <= e.maxChars {
		return text
	}

	head := ""
	chunks, err := e.splitter.SplitText(text)
	if err == nil && len(chunks) > 0 {
		head = chunks[0]
	}
	// A single unbroken run longer than the limit comes back whole.
	if head == "" || utf8.RuneCountInString(head) > e.maxChars {
		head = string([]rune(text)[:e.maxChars])
	}
	return strings.TrimSpace(head) + "..."
}
