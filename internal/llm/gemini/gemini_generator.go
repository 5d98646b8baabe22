package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"parserator/internal/config"
	"parserator/internal/llm"
	"parserator/internal/port"
)

const defaultModel = "gemini-1.5-flash"

// Generator implements port.TextGenerator using the Gemini API.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator creates a Gemini-backed text generator. BaseURL overrides the
// API endpoint (used by tests).
func NewGenerator(cfg *config.LLMProviderConfig) (*Generator, error) {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.TimeoutSecs > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini.NewGenerator: %w", err)
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	model := input.Model
	if model == "" {
		model = g.model
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(input.Temperature)),
		TopP:            genai.Ptr(float32(input.TopP)),
		MaxOutputTokens: int32(input.MaxTokens),
		StopSequences:   input.StopSequences,
	}
	if input.TopK > 0 {
		genCfg.TopK = genai.Ptr(float32(input.TopK))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(input.Prompt), genCfg)
	if err != nil {
		if apiErrorCode(err) == http.StatusTooManyRequests {
			return nil, llm.NewRateLimitError("gemini", err, 0)
		}
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked by gemini: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	finish := string(resp.Candidates[0].FinishReason)
	if finish == "SAFETY" {
		return nil, fmt.Errorf("response blocked by gemini safety filters")
	}

	out := &port.GenerateOutput{
		Text:         resp.Text(),
		Model:        model,
		FinishReason: finish,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func apiErrorCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

func init() {
	llm.RegisterProvider("gemini", func(cfg *config.LLMProviderConfig) (port.TextGenerator, error) {
		return NewGenerator(cfg)
	})
}
