package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// TaskCategory selects which primary/fallback model pair serves a request.
type TaskCategory string

const (
	// TaskDraft is long-form legal drafting; it uses a pair tuned for it.
	TaskDraft TaskCategory = "draft"
	// TaskRefinement is the default pair, used for iterative edits.
	TaskRefinement TaskCategory = "refinement"
)

// ModelPair is a primary model and the model tried when it fails.
type ModelPair struct {
	Primary  *Model
	Fallback *Model
}

// Completer is the tiered completion client. Tier 1 is the category's primary
// model; tier 2 retries the whole request against the fallback when the
// primary call fails at the transport level. Orthogonally, structured output
// that does not parse escalates once to a dedicated repair model.
type Completer struct {
	pairs  map[TaskCategory]ModelPair
	repair *Model
	logger *slog.Logger
}

func NewCompleter(pairs map[TaskCategory]ModelPair, repair *Model) *Completer {
	return &Completer{
		pairs:  pairs,
		repair: repair,
		logger: slog.Default(),
	}
}

func (c *Completer) WithLogger(logger *slog.Logger) *Completer {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Complete generates text for the given category. When the fallback model also
// fails, a descriptive error string is returned as the text rather than an
// error: the pipeline's own failure handling owns degradation decisions, and
// its validation layer treats unusable text as a failed attempt.
func (c *Completer) Complete(ctx context.Context, messages []Message, category TaskCategory, format *ResponseFormat) (string, error) {
	pair, ok := c.pairs[category]
	if !ok {
		pair, ok = c.pairs[TaskRefinement]
		if !ok {
			return "", fmt.Errorf("no model pair configured for category %q", category)
		}
	}
	if pair.Primary == nil {
		return "", fmt.Errorf("no primary model configured for category %q", category)
	}

	content, err := c.request(ctx, pair.Primary, messages, format)
	if err == nil {
		return content, nil
	}
	c.logger.Error("primary model failed", "model", pair.Primary.ModelName, "category", string(category), "error", err.Error())

	if pair.Fallback != nil && pair.Fallback.ModelName != pair.Primary.ModelName {
		c.logger.Info("retrying with fallback model", "model", pair.Fallback.ModelName)
		content, fbErr := c.request(ctx, pair.Fallback, messages, format)
		if fbErr == nil {
			return content, nil
		}
		c.logger.Error("fallback model failed", "model", pair.Fallback.ModelName, "error", fbErr.Error())
		return fmt.Sprintf("Error generating text: %v", fbErr), nil
	}

	return fmt.Sprintf("Error generating text: %v", err), nil
}

// request performs one tier: a model call plus, for structured output, the
// repair escalation.
func (c *Completer) request(ctx context.Context, model *Model, messages []Message, format *ResponseFormat) (string, error) {
	response, err := model.Call(ctx, messages, format)
	if err != nil {
		return "", err
	}

	content := response.Content
	if format != nil && format.Type == "json_object" {
		if _, ok := ExtractJSON(content); !ok {
			c.logger.Warn("invalid JSON from model, attempting repair", "model", model.ModelName)
			content = c.repairJSON(ctx, content, format)
		}
	}
	return content, nil
}

// repairJSON asks the repair model to re-emit the malformed text as valid
// JSON. A failed or still-invalid repair returns the original text untouched;
// repair never raises.
func (c *Completer) repairJSON(ctx context.Context, malformed string, format *ResponseFormat) string {
	if c.repair == nil {
		return malformed
	}

	schemaHint := format.Schema
	if schemaHint == "" {
		schemaHint = "JSON object"
	}
	messages := []Message{
		SystemMessage{Role: SystemRole, Content: "You are a JSON repair assistant. Output ONLY valid JSON."},
		UserMessage{Role: UserRole, Content: fmt.Sprintf("Convert this text into valid JSON matching this schema: %s\n\n%s", schemaHint, malformed)},
	}

	repaired, err := c.repair.Call(ctx, messages, format)
	if err != nil {
		c.logger.Error("JSON repair failed", "model", c.repair.ModelName, "error", err.Error())
		return malformed
	}
	if _, ok := ExtractJSON(repaired.Content); !ok {
		c.logger.Warn("repair model output still invalid, keeping original", "model", c.repair.ModelName)
		return malformed
	}
	return repaired.Content
}
