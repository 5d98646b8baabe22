package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parserator/internal/llm"
	"parserator/internal/port"
	"parserator/mocks"
)

func fastConfig() llm.Config {
	cfg := llm.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	return cfg
}

func okOutput(text string) *port.GenerateOutput {
	return &port.GenerateOutput{Text: text, Model: "gemini-1.5-flash", FinishReason: "STOP", TotalTokens: 42}
}

func requireGatewayError(t *testing.T, err error) *llm.Error {
	t.Helper()
	var gwErr *llm.Error
	require.True(t, errors.As(err, &gwErr), "expected *llm.Error, got %T", err)
	return gwErr
}

func TestGateway_Generate_Success(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(in port.GenerateInput) bool {
		return in.Prompt == "hello" && in.MaxTokens == 4096 && in.Temperature == 0.1 && in.TopP == 0.8 && in.TopK == 40
	})).Return(okOutput("world"), nil).Once()

	gw := llm.NewGateway(gen, fastConfig())
	resp, err := gw.Generate(context.Background(), "hello", llm.Options{RequestID: "req_test"})

	require.NoError(t, err)
	assert.Equal(t, "world", resp.Content)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "req_test", resp.RequestID)
	assert.Equal(t, 1, resp.Attempts)
	gen.AssertExpectations(t)
}

func TestGateway_Generate_ExplicitZeroTemperature(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(in port.GenerateInput) bool {
		return in.Temperature == 0
	})).Return(okOutput("ok"), nil).Once()

	gw := llm.NewGateway(gen, fastConfig())
	_, err := gw.Generate(context.Background(), "p", llm.Options{Temperature: llm.Ptr(0.0)})

	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestGateway_Generate_RetriesThenSucceeds(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 503")).Twice()
	gen.On("Generate", mock.Anything, mock.Anything).Return(okOutput("third time"), nil).Once()

	gw := llm.NewGateway(gen, fastConfig())
	resp, err := gw.Generate(context.Background(), "prompt", llm.Options{})

	require.NoError(t, err)
	assert.Equal(t, "third time", resp.Content)
	assert.Equal(t, 3, resp.Attempts)
	gen.AssertNumberOfCalls(t, "Generate", 3)
}

func TestGateway_Generate_InvalidAPIKeyNeverRetries(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("API key not valid. Please pass a valid API key.")).Once()

	gw := llm.NewGateway(gen, fastConfig())
	_, err := gw.Generate(context.Background(), "prompt", llm.Options{})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeInvalidAPIKey, gwErr.Code)
	assert.Equal(t, 401, gwErr.StatusCode)
	assert.Equal(t, 1, gwErr.Details["attempts"])
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGateway_Generate_ContentBlockedNeverRetries(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("response blocked by safety filters")).Once()

	gw := llm.NewGateway(gen, fastConfig())
	_, err := gw.Generate(context.Background(), "prompt", llm.Options{})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeContentBlocked, gwErr.Code)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGateway_Generate_ExhaustsRetries(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("quota exhausted for project"))

	gw := llm.NewGateway(gen, fastConfig())
	_, err := gw.Generate(context.Background(), "prompt", llm.Options{RequestID: "req_x"})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeLLMCallFailed, gwErr.Code)
	assert.Equal(t, 3, gwErr.Details["attempts"])
	assert.Equal(t, "req_x", gwErr.Details["requestId"])
	assert.Equal(t, llm.CodeQuotaExceeded, gwErr.Details["originalCode"])
	assert.Equal(t, len("prompt"), gwErr.Details["promptLength"])
	gen.AssertNumberOfCalls(t, "Generate", 3)
}

func TestGateway_Generate_PromptValidation(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gw := llm.NewGateway(gen, fastConfig())

	tests := []struct {
		name   string
		prompt string
		code   string
	}{
		{"empty", "", llm.CodeInvalidPrompt},
		{"whitespace", "   \n\t", llm.CodeEmptyPrompt},
		{"too long", strings.Repeat("a", 1<<20+128<<10+1), llm.CodePromptTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.Generate(context.Background(), tt.prompt, llm.Options{})
			gwErr := requireGatewayError(t, err)
			assert.Equal(t, tt.code, gwErr.Code)
			assert.False(t, gwErr.Retryable())
		})
	}
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGateway_Generate_Timeout(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(nil, context.DeadlineExceeded)

	gw := llm.NewGateway(gen, fastConfig())
	_, err := gw.Generate(context.Background(), "prompt", llm.Options{Timeout: 10 * time.Millisecond})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeRequestTimeout, gwErr.Code)
	assert.Equal(t, 3, gwErr.Details["attempts"])
}

func TestGateway_Generate_EmptyResponses(t *testing.T) {
	t.Run("nil output", func(t *testing.T) {
		gen := new(mocks.MockTextGenerator)
		gen.On("Generate", mock.Anything, mock.Anything).Return(nil, nil)

		gw := llm.NewGateway(gen, fastConfig())
		_, err := gw.Generate(context.Background(), "prompt", llm.Options{MaxAttempts: 1})

		gwErr := requireGatewayError(t, err)
		assert.Equal(t, llm.CodeLLMCallFailed, gwErr.Code)
		assert.Equal(t, llm.CodeEmptyResponse, gwErr.Details["originalCode"])
	})

	t.Run("blank text", func(t *testing.T) {
		gen := new(mocks.MockTextGenerator)
		gen.On("Generate", mock.Anything, mock.Anything).Return(&port.GenerateOutput{Text: "  "}, nil)

		gw := llm.NewGateway(gen, fastConfig())
		_, err := gw.Generate(context.Background(), "prompt", llm.Options{MaxAttempts: 1})

		gwErr := requireGatewayError(t, err)
		assert.Equal(t, llm.CodeEmptyContent, gwErr.Details["originalCode"])
	})
}

func TestGateway_Generate_EstimatesTokensWithoutUsage(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(&port.GenerateOutput{Text: "12345678"}, nil)

	gw := llm.NewGateway(gen, fastConfig())
	resp, err := gw.Generate(context.Background(), "abcd", llm.Options{})

	require.NoError(t, err)
	assert.Equal(t, 3, resp.TokensUsed)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
}

func TestGateway_Generate_NotInitialized(t *testing.T) {
	gw := llm.NewGateway(nil, fastConfig())

	_, err := gw.Generate(context.Background(), "prompt", llm.Options{})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeServiceUnavailable, gwErr.Code)
	assert.False(t, gw.Ready())
}

func TestGateway_Generate_CancelledDuringBackoff(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("server error")).Once()

	cfg := fastConfig()
	cfg.BackoffBase = time.Hour
	gw := llm.NewGateway(gen, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := gw.Generate(ctx, "prompt", llm.Options{})

	gwErr := requireGatewayError(t, err)
	assert.Equal(t, llm.CodeLLMCallFailed, gwErr.Code)
	assert.Equal(t, 1, gwErr.Details["attempts"])
}

func TestGateway_TestConnection(t *testing.T) {
	gen := new(mocks.MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(in port.GenerateInput) bool {
		return in.MaxTokens == 10 && strings.Contains(in.Prompt, "Test connection")
	})).Return(okOutput("OK"), nil).Once()

	gw := llm.NewGateway(gen, fastConfig())
	resp, err := gw.TestConnection(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Content)
	gen.AssertExpectations(t)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, llm.EstimateTokens(""))
	assert.Equal(t, 1, llm.EstimateTokens("abc"))
	assert.Equal(t, 1, llm.EstimateTokens("abcd"))
	assert.Equal(t, 2, llm.EstimateTokens("abcde"))
}
