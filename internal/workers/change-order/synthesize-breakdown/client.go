// internal/workers/change-order/synthesize-breakdown/client.go
package synthesizebreakdown

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	httpclient "change-order-generator/internal/common/http"
)

// Completer sends one system/user prompt pair and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrEmptyCompletion is returned when the service answers with no choices.
var ErrEmptyCompletion = errors.New("reasoning service returned no choices")

// OpenAICompleter talks to any OpenAI-compatible chat completion API.
type OpenAICompleter struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
	jsonMode    bool
}

// legacyChatModels reject response_format json_object with a 400.
var legacyChatModels = map[string]bool{
	"gpt-4":              true,
	"gpt-4-0314":         true,
	"gpt-4-0613":         true,
	"gpt-4-32k":          true,
	"gpt-4-32k-0314":     true,
	"gpt-4-32k-0613":     true,
	"gpt-3.5-turbo-0301": true,
	"gpt-3.5-turbo-0613": true,
}

// SupportsJSONMode reports whether model accepts response_format json_object.
func SupportsJSONMode(model string) bool {
	return !legacyChatModels[strings.ToLower(strings.TrimSpace(model))]
}

// NewOpenAICompleter builds the langchaingo client. JSON mode is requested
// when configured and the model supports it; otherwise the reply goes through
// fence stripping and the schema check alone.
func NewOpenAICompleter(cfg *Config, doer *httpclient.Client) (*OpenAICompleter, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if doer != nil {
		opts = append(opts, openai.WithHTTPClient(doer))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reasoning client: %w", err)
	}

	return &OpenAICompleter{
		llm:         llm,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		jsonMode:    cfg.JSONMode && SupportsJSONMode(cfg.Model),
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt),
	}

	opts := []llms.CallOption{
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	}
	if c.jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
