package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"cleanrag/internal/domain"
)

// FormatKnowledgeAsContext renders records as a numbered context block for
// the completion prompt. No records yields the empty string.
func FormatKnowledgeAsContext(records []domain.KnowledgeRecord) string {
	if len(records) == 0 {
		return ""
	}
	parts := make([]string, 0, len(records))
	for i, rec := range records {
		title := firstString(rec.Attributes, "title", "stain_type")
		if title == "" {
			title = "Unknown"
		}
		content := firstString(rec.Attributes, "content", "description")
		header := fmt.Sprintf("%d. %s", i+1, title)
		if rate := successRate(rec.Attributes); rate != "" {
			header += fmt.Sprintf(" (성공률: %s)", rate)
		}
		parts = append(parts, header+"\n"+content)
	}
	return strings.Join(parts, "\n\n")
}

func firstString(attrs map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := attrs[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// successRate reads success_rate as stored by the seeders: either a string
// such as "30~40%" or a bare number of percent.
func successRate(attrs map[string]any) string {
	switch v := attrs["success_rate"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64) + "%"
	case int:
		return strconv.Itoa(v) + "%"
	}
	return ""
}
