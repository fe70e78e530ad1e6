// internal/research/prompt/render.go
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"research-workers/internal/models"
)

// SnippetLimit bounds per-source content in Pro synthesis prompts.
const SnippetLimit = 500

// NumberedSources renders results as "[n] title\ncontent\nURL: url" blocks, numbered from 1.
// maxContent <= 0 keeps content whole.
func NumberedSources(results []models.SearchResult, maxContent int) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		content := r.Content
		if maxContent > 0 {
			content = Truncate(content, maxContent)
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\nURL: %s", i+1, title, content, r.URL))
	}
	return strings.Join(blocks, "\n\n")
}

// Truncate cuts s to at most n runes and drops invalid UTF-8 sequences.
func Truncate(s string, n int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
