package casepipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/nexxia-ai/casepipe/ai"
)

// Envelope is the structured output expected from the drafting model.
type Envelope struct {
	Summary       string `json:"summary"`
	Content       string `json:"content"`
	Thesis        string `json:"thesis"`
	LegalArea     string `json:"area"`
	SpecificPoint string `json:"specific_point"`
}

const draftSchemaHint = `{"summary": "one-line case summary", "content": "full document text", "thesis": "central legal argument", "area": "area of law", "specific_point": "the specific legal point at issue"}`

const draftAttempts = 3

var ErrDraftExhausted = errors.New("draft generation exhausted all attempts")

// Generator produces text for a task category, optionally constrained to a
// response format. Satisfied by *ai.Completer.
type Generator interface {
	Complete(ctx context.Context, messages []ai.Message, category ai.TaskCategory, format *ai.ResponseFormat) (string, error)
}

// GenerateDraft runs the drafting model until it yields a parseable envelope
// whose content meets the minimum length for the document type, up to
// draftAttempts attempts. Quality failures consume attempts; transport
// retries happen below this loop inside the model call.
func GenerateDraft(ctx context.Context, gen Generator, cfg Config, userContext, research string, logger *slog.Logger) (Envelope, error) {
	if logger == nil {
		logger = slog.Default()
	}

	messages := []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: cfg.Persona.SystemPrompt},
		ai.UserMessage{Role: ai.UserRole, Content: buildDraftPrompt(cfg, userContext, research)},
	}
	format := &ai.ResponseFormat{Type: "json_object", Schema: draftSchemaHint}

	var lastErr error
	for attempt := 1; attempt <= draftAttempts; attempt++ {
		text, err := gen.Complete(ctx, messages, ai.TaskDraft, format)
		if err != nil {
			return Envelope{}, err
		}

		env, err := parseEnvelope(text)
		if err != nil {
			lastErr = err
			logger.Warn("draft attempt rejected", "attempt", attempt, "error", err)
			continue
		}
		if n := utf8.RuneCountInString(env.Content); n < cfg.MinContentLength {
			lastErr = fmt.Errorf("content too short: %d < %d", n, cfg.MinContentLength)
			logger.Warn("draft attempt rejected", "attempt", attempt, "error", lastErr)
			continue
		}
		return env, nil
	}

	return Envelope{}, fmt.Errorf("%w: %v", ErrDraftExhausted, lastErr)
}

func parseEnvelope(text string) (Envelope, error) {
	raw, ok := ai.ExtractJSON(text)
	if !ok {
		return Envelope{}, errors.New("no JSON object in model output")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if strings.TrimSpace(env.Content) == "" {
		return Envelope{}, errors.New("envelope has empty content")
	}
	return env, nil
}

func buildDraftPrompt(cfg Config, userContext, research string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a %s based on the facts below.\n\n", cfg.Label)
	b.WriteString("FACTS:\n")
	b.WriteString(userContext)
	if research != "" {
		b.WriteString("\n\nLEGAL CONTEXT:\n")
		b.WriteString(research)
	}
	b.WriteString("\n\nRespond with a single JSON object matching this schema:\n")
	b.WriteString(draftSchemaHint)
	return b.String()
}
