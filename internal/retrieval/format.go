package retrieval

import (
	"fmt"
	"strings"
)

// NoContext is the context string used when nothing was retrieved.
const NoContext = "No specific medical information found for this query."

// FormatContext renders results as numbered references. Content is cut to
// previewLength runes (DefaultPreviewLength when <= 0) with "..." appended
// when truncated.
func FormatContext(results []Result, previewLength int) string {
	if len(results) == 0 {
		return NoContext
	}
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}

	var b strings.Builder
	for n, r := range results {
		if n > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Medical Reference %d:\nTopic: %s\nCategory: %s\nContent: %s\n",
			n+1, r.Title, r.Category, truncate(r.Text, previewLength))
	}
	return b.String()
}

// HasContext reports whether s carries retrieved information.
func HasContext(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != NoContext
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
