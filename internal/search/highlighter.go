package search

import (
	"strings"

	"github.com/hyperjump/codelens/pkg/utils"
)

// Highlight truncates content to maxLen bytes without splitting a character.
func Highlight(content string, maxLen int) string {
	return utils.Truncate(content, maxLen)
}

// Snippet returns up to maxLen bytes of content starting at the first line that
// mentions one of the query's identifier pieces. When no line matches, the snippet
// starts at the top, which for a chunk is its signature.
func Snippet(content, query string, maxLen int) string {
	var terms []string
	for _, p := range utils.SplitIdentifiers(query) {
		if len(p) > 1 {
			terms = append(terms, p)
		}
	}
	lines := strings.Split(content, "\n")
	start := 0
	for i, line := range lines {
		if lineMentions(line, terms) {
			start = i
			break
		}
	}
	return Highlight(strings.Join(lines[start:], "\n"), maxLen)
}

func lineMentions(line string, terms []string) bool {
	lower := strings.ToLower(line)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
