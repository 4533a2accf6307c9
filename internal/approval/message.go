package approval

import (
	"fmt"
	"strings"

	"newsdesk/internal/domain"
)

const summaryLimit = 150

// BuildPostText renders the destination-agnostic message body for one
// approved article.
func BuildPostText(display string, article domain.Article) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s", domain.CategoryEmoji(article.Category), article.Title)

	if summary := truncate(article.Summary, summaryLimit); summary != "" {
		b.WriteString("\n\n")
		b.WriteString(summary)
	}
	if display != "" {
		fmt.Fprintf(&b, "\n\n📌 %s", display)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit]) + "..."
}
