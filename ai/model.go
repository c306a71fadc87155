package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexxia-ai/casepipe/retry"
)

// ErrTemporary marks a transport error as retryable. Provider drivers wrap
// timeouts, connection failures, 429s and 5xx responses with it.
var ErrTemporary = retry.ErrTemporary

type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}

// ResponseFormat asks the provider for schema-constrained output. Schema is a
// prompt-level hint, not an enforced contract; callers still validate.
type ResponseFormat struct {
	Type   string // "json_object"
	Schema string
}

// Model represents a generic model container that uses a function variable for
// provider-specific logic.
type Model struct {
	ModelName string
	APIKey    string
	BaseURL   string

	// callFunc is the implementation for each provider
	callFunc func(ctx context.Context, model *Model, messages []Message, format *ResponseFormat) (AIMessage, error)

	// Options pointer variables - use nil to represent option not set
	Temperature *float64
	MaxTokens   *int
	MaxRetries  *int
	RetryDelay  *time.Duration
}

// Call makes a single completion request, routing transient transport
// failures through the backoff retrier.
func (m *Model) Call(ctx context.Context, messages []Message, format *ResponseFormat) (AIMessage, error) {
	opts := []retry.Option{}
	if m.MaxRetries != nil {
		opts = append(opts, retry.WithMaxAttempts(*m.MaxRetries))
	}
	if m.RetryDelay != nil {
		opts = append(opts, retry.WithInitialDelay(*m.RetryDelay))
	}
	return retry.Do(ctx, m.ModelName, func(ctx context.Context) (AIMessage, error) {
		return m.callFunc(ctx, m, messages, format)
	}, opts...)
}

// WithTemperature sets the temperature for the model and returns the model for chaining
func (m *Model) WithTemperature(temperature float64) *Model {
	m.Temperature = &temperature
	return m
}

// WithMaxTokens sets the maximum tokens for the model and returns the model for chaining
func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.MaxTokens = &maxTokens
	return m
}

// WithMaxRetries sets the transport retry budget and returns the model for chaining
func (m *Model) WithMaxRetries(maxRetries int) *Model {
	m.MaxRetries = &maxRetries
	return m
}

// WithRetryDelay sets the initial backoff delay and returns the model for chaining
func (m *Model) WithRetryDelay(delay time.Duration) *Model {
	m.RetryDelay = &delay
	return m
}

// SetGenerateFunc sets the generate function for the model. This is used to
// plug in a provider implementation.
func (m *Model) SetGenerateFunc(generateFunc func(ctx context.Context, model *Model, messages []Message, format *ResponseFormat) (AIMessage, error)) {
	m.callFunc = generateFunc
}

// ExtractThinkTags extracts <think>...</think> tags from the content and returns both the cleaned content and the think part
func ExtractThinkTags(content string) (cleanedContent string, thinkPart string) {
	startTag := "<think>"
	endTag := "</think>"

	start := strings.Index(content, startTag)
	if start == -1 {
		return content, ""
	}

	end := strings.Index(content[start:], endTag)
	if end == -1 {
		return content, ""
	}
	end += start + len(endTag)

	thinkPart = content[start+len(startTag) : end-len(endTag)]
	cleanedContent = content[:start] + content[end:]

	return strings.TrimSpace(cleanedContent), strings.TrimSpace(thinkPart)
}
