package ai

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of model output. Models frequently wrap
// JSON in code fences or surround it with prose; the extraction is lenient:
// the raw text is tried first, then the text inside ``` fences, then the
// widest {...} span. Returns false when no valid JSON object can be found.
func ExtractJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}

	if fenced, ok := stripCodeFence(trimmed); ok {
		if json.Valid([]byte(fenced)) && strings.HasPrefix(fenced, "{") {
			return fenced, true
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	return "", false
}

func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	rest := strings.TrimPrefix(text, "```")
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:] // drop the language tag line
	}
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
