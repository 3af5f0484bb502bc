package pipeline

import "strings"

// SanitizeSQL cuts a provider's raw answer down to the bare statement.
// Providers are prompted to return SQL only, but in practice wrap it in
// markdown fences or lead with narration; sanitization drops everything
// before the first SELECT or WITH token and anything after a closing fence.
// It never rewrites the statement itself: a sanitized answer that is still
// not valid SQL is the validator's problem.
func SanitizeSQL(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		// Fence may carry a language tag on its opening line.
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(text[:nl])
			if firstLine == "" || isFenceTag(firstLine) {
				text = text[nl+1:]
			}
		}
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	if start := firstStatementOffset(text); start > 0 {
		text = text[start:]
	}
	return strings.TrimSpace(text)
}

func isFenceTag(line string) bool {
	switch strings.ToLower(line) {
	case "sql", "postgresql", "postgres", "sqlite", "duckdb":
		return true
	default:
		return false
	}
}

// firstStatementOffset finds the byte offset of the first SELECT or WITH
// token, scanning word boundaries so column names like "selected_at" are not
// mistaken for the statement start.
func firstStatementOffset(text string) int {
	lower := strings.ToLower(text)
	best := -1
	for _, keyword := range []string{"select", "with"} {
		from := 0
		for {
			idx := strings.Index(lower[from:], keyword)
			if idx < 0 {
				break
			}
			idx += from
			if isWordBoundary(lower, idx, len(keyword)) {
				if best < 0 || idx < best {
					best = idx
				}
				break
			}
			from = idx + len(keyword)
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func isWordBoundary(s string, start, length int) bool {
	if start > 0 && isWordChar(s[start-1]) {
		return false
	}
	end := start + length
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
