package ai

import "strings"

// Per-model output budgets. Keyed by model name pattern; matched with a
// case-insensitive substring search so provider prefixes and date-stamped
// variants resolve to the same budget.
var modelMaxTokens = map[string]int{
	"deepseek/deepseek-r1":   16384,
	"deepseek/deepseek-chat": 8192,
	"google/gemma-3-27b":     8192,
	"moonshotai/moonlight":   8192,
	"qwen/qwen3-4b":          4096,
	"anthropic/claude":       8192,
	"openai/gpt-4":           8192,
}

const DefaultMaxTokens = 8192

// MaxTokensForModel returns the safe output budget for a model, falling back
// to a conservative default for unrecognized models.
func MaxTokensForModel(model string) int {
	lower := strings.ToLower(model)
	for pattern, maxTokens := range modelMaxTokens {
		if strings.Contains(lower, pattern) {
			return maxTokens
		}
	}
	return DefaultMaxTokens
}
