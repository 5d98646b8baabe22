package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/port"
)

const (
	defaultModel          = "gemini-1.5-flash"
	defaultMaxTokens      = 4096
	defaultTemperature    = 0.1
	defaultTopP           = 0.8
	defaultTopK           = 40
	defaultTimeout        = 30 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoffBase    = time.Second
	defaultMaxPromptBytes = 1<<20 + 128<<10

	connectionTestPrompt = `Test connection. Please respond with "OK".`
)

// Options are per-call generation parameters. Zero values take the gateway defaults.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	TopK          int
	StopSequences []string
	Timeout       time.Duration
	MaxAttempts   int
	RequestID     string
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Response is a successful model completion.
type Response struct {
	Content          string
	TokensUsed       int
	PromptTokens     int
	CompletionTokens int
	Model            string
	FinishReason     string
	ResponseTime     time.Duration
	RequestID        string
	Attempts         int
}

// Config tunes the gateway's retry policy and defaults.
type Config struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	TopP           float64
	TopK           int
	Timeout        time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	MaxPromptBytes int
}

// Gateway wraps a TextGenerator with prompt validation, per-attempt timeouts,
// error classification, and exponential backoff.
type Gateway struct {
	generator port.TextGenerator
	cfg       Config
}

// NewGateway creates a Gateway. A nil generator yields SERVICE_UNAVAILABLE on every call.
func NewGateway(generator port.TextGenerator, cfg Config) *Gateway {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.MaxPromptBytes <= 0 {
		cfg.MaxPromptBytes = defaultMaxPromptBytes
	}
	return &Gateway{generator: generator, cfg: cfg}
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Model:          defaultModel,
		MaxTokens:      defaultMaxTokens,
		Temperature:    defaultTemperature,
		TopP:           defaultTopP,
		TopK:           defaultTopK,
		Timeout:        defaultTimeout,
		MaxAttempts:    defaultMaxAttempts,
		BackoffBase:    defaultBackoffBase,
		MaxPromptBytes: defaultMaxPromptBytes,
	}
}

// Ready reports whether a model client is configured.
func (g *Gateway) Ready() bool {
	return g != nil && g.generator != nil
}

// Model returns the default model name.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

func (g *Gateway) resolve(opts Options) Options {
	if opts.Model == "" {
		opts.Model = g.cfg.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = g.cfg.MaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = Ptr(g.cfg.Temperature)
	}
	if opts.TopP == nil {
		opts.TopP = Ptr(g.cfg.TopP)
	}
	if opts.TopK <= 0 {
		opts.TopK = g.cfg.TopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = g.cfg.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = g.cfg.MaxAttempts
	}
	if opts.RequestID == "" {
		opts.RequestID = domain.NewOperationID("req")
	}
	return opts
}

func (g *Gateway) validatePrompt(prompt string) *Error {
	if prompt == "" {
		return newError(CodeInvalidPrompt, http.StatusBadRequest, "prompt must be a non-empty string", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return newError(CodeEmptyPrompt, http.StatusBadRequest, "prompt cannot be empty or whitespace only", nil)
	}
	if len(prompt) > g.cfg.MaxPromptBytes {
		e := newError(CodePromptTooLong, http.StatusBadRequest,
			fmt.Sprintf("prompt exceeds maximum length of %d bytes", g.cfg.MaxPromptBytes), nil)
		e.Details["promptLength"] = len(prompt)
		return e
	}
	return nil
}

// Generate sends prompt to the model, retrying transient failures. Expected
// failures are returned as *Error.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	if !g.Ready() {
		return nil, newError(CodeServiceUnavailable, http.StatusServiceUnavailable, "model client not initialized", nil)
	}
	opts = g.resolve(opts)
	log := logger.With("request_id", opts.RequestID, "model", opts.Model)

	if vErr := g.validatePrompt(prompt); vErr != nil {
		vErr.Details["requestId"] = opts.RequestID
		log.Warn("llm.Gateway.Generate: prompt rejected", "code", vErr.Code)
		return nil, vErr
	}

	start := time.Now()
	var lastErr *Error
	attempts := 0

retry:
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attempts = attempt
		resp, err := g.attempt(ctx, prompt, opts)
		if err == nil {
			resp.ResponseTime = time.Since(start)
			resp.RequestID = opts.RequestID
			resp.Attempts = attempt
			log.Info("llm.Gateway.Generate: completed",
				"attempt", attempt,
				"tokens", resp.TokensUsed,
				"response_time_ms", resp.ResponseTime.Milliseconds())
			return resp, nil
		}

		lastErr = err
		log.Warn("llm.Gateway.Generate: attempt failed",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"code", err.Code,
			"error", err.Message)

		if !err.Retryable() {
			err.Details["requestId"] = opts.RequestID
			err.Details["attempts"] = attempt
			return nil, err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := g.cfg.BackoffBase * time.Duration(1<<uint(attempt))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			log.Warn("llm.Gateway.Generate: backoff interrupted", "attempt", attempt, "error", ctx.Err())
			break retry
		}
	}

	final := newError(CodeLLMCallFailed, http.StatusInternalServerError,
		fmt.Sprintf("model call failed after %d attempts: %s", attempts, lastErr.Message), lastErr)
	if lastErr.Code == CodeRequestTimeout {
		final.Code = CodeRequestTimeout
		final.StatusCode = lastErr.StatusCode
	}
	final.Details = map[string]interface{}{
		"requestId":      opts.RequestID,
		"attempts":       attempts,
		"responseTimeMs": time.Since(start).Milliseconds(),
		"originalError":  lastErr.Message,
		"originalCode":   lastErr.Code,
		"promptLength":   len(prompt),
	}
	log.Error("llm.Gateway.Generate: giving up", "attempts", attempts, "code", final.Code)
	return nil, final
}

type attemptResult struct {
	out *port.GenerateOutput
	err error
}

func (g *Gateway) attempt(ctx context.Context, prompt string, opts Options) (*Response, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	input := port.GenerateInput{
		Prompt:        prompt,
		Model:         opts.Model,
		MaxTokens:     opts.MaxTokens,
		Temperature:   *opts.Temperature,
		TopP:          *opts.TopP,
		TopK:          opts.TopK,
		StopSequences: opts.StopSequences,
	}

	done := make(chan attemptResult, 1)
	go func() {
		out, err := g.generator.Generate(attemptCtx, input)
		done <- attemptResult{out: out, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		return nil, newError(CodeRequestTimeout, http.StatusRequestTimeout,
			fmt.Sprintf("model request timed out after %s", opts.Timeout), attemptCtx.Err())
	}

	if res.err != nil {
		if attemptCtx.Err() != nil {
			return nil, newError(CodeRequestTimeout, http.StatusRequestTimeout,
				fmt.Sprintf("model request timed out after %s", opts.Timeout), res.err)
		}
		return nil, Classify(res.err)
	}
	if res.out == nil {
		return nil, newError(CodeEmptyResponse, http.StatusInternalServerError, "model returned no response", nil)
	}
	if strings.TrimSpace(res.out.Text) == "" {
		return nil, newError(CodeEmptyContent, http.StatusInternalServerError, "model returned empty content", nil)
	}

	tokens := res.out.TotalTokens
	if tokens <= 0 {
		tokens = res.out.PromptTokens + res.out.CompletionTokens
	}
	if tokens <= 0 {
		tokens = EstimateTokens(prompt) + EstimateTokens(res.out.Text)
	}
	model := res.out.Model
	if model == "" {
		model = opts.Model
	}

	return &Response{
		Content:          res.out.Text,
		TokensUsed:       tokens,
		PromptTokens:     res.out.PromptTokens,
		CompletionTokens: res.out.CompletionTokens,
		Model:            model,
		FinishReason:     res.out.FinishReason,
	}, nil
}

// EstimateTokens approximates a token count as one token per four bytes.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TestConnection issues a single short request to verify the model is reachable.
func (g *Gateway) TestConnection(ctx context.Context) (*Response, error) {
	return g.Generate(ctx, connectionTestPrompt, Options{
		MaxTokens:   10,
		Timeout:     10 * time.Second,
		MaxAttempts: 1,
	})
}
