package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"parserator/internal/config"
	"parserator/internal/llm"
	"parserator/internal/port"
)

// Generator implements port.TextGenerator using Anthropic's Messages API.
type Generator struct {
	client anthropic.Client
	model  string
}

// NewGenerator creates a Claude-backed text generator. SDK-level retries are
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
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &Generator{client: anthropic.NewClient(opts...), model: model}
}

func (g *Generator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	model := input.Model
	if model == "" || strings.HasPrefix(model, "gemini") {
		model = g.model
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(input.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(input.Prompt))},
		Temperature: anthropic.Float(input.Temperature),
	}
	if len(input.StopSequences) > 0 {
		params.StopSequences = input.StopSequences
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := 0
			if apiErr.Response != nil {
				retryAfter = llm.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
			}
			return nil, llm.NewRateLimitError("claude", err, retryAfter)
		}
		return nil, fmt.Errorf("calling claude API: %w", err)
	}
	if resp == nil {
		return nil, nil
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	return &port.GenerateOutput{
		Text:             text.String(),
		Model:            string(resp.Model),
		FinishReason:     string(resp.StopReason),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

func init() {
	llm.RegisterProvider("claude", func(cfg *config.LLMProviderConfig) (port.TextGenerator, error) {
		return NewGenerator(cfg), nil
	})
}
