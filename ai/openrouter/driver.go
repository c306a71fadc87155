// Package openrouter provides an ai.Model backed by the OpenRouter
// OpenAI-compatible chat completions API.
package openrouter

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

const BaseURL = "https://openrouter.ai/api/v1"

func NewModel(modelName string, apiKey string) *ai.Model {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			slog.Error("OPENROUTER_API_KEY is not set")
		}
	}

	model := &ai.Model{
		ModelName: modelName,
		APIKey:    apiKey,
		BaseURL:   BaseURL,
	}
	model.SetGenerateFunc(generate)
	return model
}

func generate(ctx context.Context, model *ai.Model, messages []ai.Message, format *ai.ResponseFormat) (ai.AIMessage, error) {
	client := createClient(model)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.ModelName),
		Messages: toChatMessages(messages),
	}

	maxTokens := ai.MaxTokensForModel(model.ModelName)
	if model.MaxTokens != nil {
		maxTokens = *model.MaxTokens
	}
	params.MaxTokens = openai.Opt(int64(maxTokens))

	if model.Temperature != nil {
		params.Temperature = openai.Opt(*model.Temperature)
	}

	// Only deepseek honors the response_format parameter reliably; other
	// models are steered through the prompt and validated by the caller.
	if format != nil && format.Type == "json_object" && strings.Contains(strings.ToLower(model.ModelName), "deepseek") {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.AIMessage{}, isRetryableError(err)
	}
	if len(resp.Choices) == 0 {
		return ai.AIMessage{}, fmt.Errorf("empty response from %s", model.ModelName)
	}

	aiMsg := ai.AIMessage{
		Role:    ai.AssistantRole,
		Content: resp.Choices[0].Message.Content,
	}
	content, thinkPart := ai.ExtractThinkTags(aiMsg.Content)
	aiMsg.Content = content
	aiMsg.Think = thinkPart

	return aiMsg, nil
}

func createClient(model *ai.Model) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(model.APIKey),
		option.WithBaseURL(model.BaseURL),
		// Required by OpenRouter for rankings
		option.WithHeader("HTTP-Referer", "https://github.com/nexxia-ai/casepipe"),
		option.WithHeader("X-Title", "casepipe"),
	)
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

	if strings.Contains(errStr, "status: 502") ||
		strings.Contains(errStr, "status: 503") ||
		strings.Contains(errStr, "status: 504") ||
		strings.Contains(errStr, "status: 429") {
		return fmt.Errorf("%w: %v", ai.ErrTemporary, err)
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary") {
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
