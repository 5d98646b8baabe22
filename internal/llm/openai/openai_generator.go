package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"parserator/internal/config"
	"parserator/internal/llm"
	"parserator/internal/port"
)

// Generator implements port.TextGenerator using OpenAI chat completions.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates an OpenAI-backed text generator. SDK-level retries are
// disabled; the gateway owns the retry policy.
func NewGenerator(cfg *config.LLMProviderConfig) *Generator {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}

	model := cfg.DefaultModel
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &Generator{client: openai.NewClient(opts...), model: model}
}

func (g *Generator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	model := input.Model
	if model == "" || strings.HasPrefix(model, "gemini") {
		model = g.model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(input.Prompt)},
		MaxTokens:   openai.Int(int64(input.MaxTokens)),
		Temperature: openai.Float(input.Temperature),
		TopP:        openai.Float(input.TopP),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := 0
			if apiErr.Response != nil {
				retryAfter = llm.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
			}
			return nil, llm.NewRateLimitError("openai", err, retryAfter)
		}
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, fmt.Errorf("response blocked by openai content filter")
	}

	return &port.GenerateOutput{
		Text:             choice.Message.Content,
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}

func init() {
	llm.RegisterProvider("openai", func(cfg *config.LLMProviderConfig) (port.TextGenerator, error) {
		return NewGenerator(cfg), nil
	})
}
