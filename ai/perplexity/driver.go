// Package perplexity provides grounded legal research through the Perplexity
// chat completions API. Two API keys can be configured; the fallback key is
// tried when the primary key's request fails.
package perplexity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nexxia-ai/casepipe/ai"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	BaseURL = "https://api.perplexity.ai"

	// DefaultModel is an online model, chosen for grounding.
	DefaultModel = "sonar-pro"
)

const researchPrompt = "You are a rigorous legal research assistant. " +
	"Research the facts of the case against current labor legislation and jurisprudence " +
	"(using your online capabilities) and return a grounded summary of the applicable " +
	"law, relevant precedent, and citations. Focus on accuracy and legal validity."

type Client struct {
	primary  *ai.Model
	fallback *ai.Model
	logger   *slog.Logger
}

// NewClient builds a research client. Empty keys fall back to the
// PERPLEXITY_API_KEY_PRIMARY / PERPLEXITY_API_KEY_FALLBACK environment
// variables; a key that is still empty disables that slot.
func NewClient(primaryKey, fallbackKey string) *Client {
	if primaryKey == "" {
		primaryKey = os.Getenv("PERPLEXITY_API_KEY_PRIMARY")
	}
	if fallbackKey == "" {
		fallbackKey = os.Getenv("PERPLEXITY_API_KEY_FALLBACK")
	}

	c := &Client{logger: slog.Default()}
	if primaryKey != "" {
		c.primary = newModel(primaryKey)
	}
	if fallbackKey != "" {
		c.fallback = newModel(fallbackKey)
	}
	return c
}

func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Research queries Perplexity for grounded legal context on the supplied
// facts. The primary key is tried first, then the fallback key.
func (c *Client) Research(ctx context.Context, facts string, documentType string) (string, error) {
	messages := []ai.Message{
		ai.SystemMessage{Role: ai.SystemRole, Content: researchPrompt},
		ai.UserMessage{Role: ai.UserRole, Content: fmt.Sprintf("Document type: %s\n\nFacts of the case:\n%s", documentType, facts)},
	}

	var lastErr error
	if c.primary != nil {
		response, err := c.primary.Call(ctx, messages, nil)
		if err == nil {
			return response.Content, nil
		}
		lastErr = err
		c.logger.Warn("research with primary key failed, attempting fallback", "error", err.Error())
	} else {
		c.logger.Warn("research primary key not configured")
	}

	if c.fallback != nil {
		response, err := c.fallback.Call(ctx, messages, nil)
		if err == nil {
			return response.Content, nil
		}
		lastErr = err
		c.logger.Error("research fallback key also failed", "error", err.Error())
	}

	if lastErr == nil {
		lastErr = errors.New("no research API key configured")
	}
	return "", fmt.Errorf("research failed: %w", lastErr)
}

func newModel(apiKey string) *ai.Model {
	model := &ai.Model{
		ModelName: DefaultModel,
		APIKey:    apiKey,
		BaseURL:   BaseURL,
	}
	model.WithTemperature(0.1)
	model.SetGenerateFunc(generate)
	return model
}

func generate(ctx context.Context, model *ai.Model, messages []ai.Message, format *ai.ResponseFormat) (ai.AIMessage, error) {
	client := openai.NewClient(
		option.WithAPIKey(model.APIKey),
		option.WithBaseURL(model.BaseURL),
	)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.ModelName),
		Messages: toChatMessages(messages),
	}
	if model.Temperature != nil {
		params.Temperature = openai.Opt(*model.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.AIMessage{}, isRetryableError(err)
	}
	if len(resp.Choices) == 0 {
		return ai.AIMessage{}, fmt.Errorf("empty response from %s", model.ModelName)
	}

	return ai.AIMessage{
		Role:    ai.AssistantRole,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func toChatMessages(messages []ai.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		role, content := m.Value()
		switch role {
		case ai.SystemRole:
			out = append(out, openai.SystemMessage(content))
		case ai.AssistantRole:
			out = append(out, openai.AssistantMessage(content))
		default:
			out = append(out, openai.UserMessage(content))
		}
	}
	return out
}

func isRetryableError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if strings.Contains(errStr, "status: 429") ||
		strings.Contains(errStr, "status: 5") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	var apiErr interface {
		StatusCode() int
	}
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode() >= 500 || apiErr.StatusCode() == 429 {
			return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
		}
	}

	return err
}
