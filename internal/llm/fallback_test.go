package llm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parserator/internal/llm"
	"parserator/internal/port"
	"parserator/mocks"
)

var fallbackInput = port.GenerateInput{Prompt: "extract", MaxTokens: 100}

func TestFallbackGenerator_FirstSucceeds(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(&port.GenerateOutput{Text: "a", Model: "gemini"}, nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})
	out, err := fg.Generate(context.Background(), fallbackInput)

	require.NoError(t, err)
	assert.Equal(t, "gemini", out.Model)
	g2.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFallbackGenerator_FirstRateLimited_SecondSucceeds(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, llm.NewRateLimitError("gemini", errors.New("429"), 30)).Once()
	g2.On("Generate", mock.Anything, fallbackInput).Return(&port.GenerateOutput{Text: "b", Model: "claude"}, nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	out, err := fg.Generate(context.Background(), fallbackInput)
	require.NoError(t, err)
	assert.Equal(t, "claude", out.Model)

	// Second call skips the open circuit entirely.
	out, err = fg.Generate(context.Background(), fallbackInput)
	require.NoError(t, err)
	assert.Equal(t, "claude", out.Model)
	g1.AssertNumberOfCalls(t, "Generate", 1)
}

func TestFallbackGenerator_AllRateLimited(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, llm.NewRateLimitError("gemini", errors.New("429"), 10))
	g2.On("Generate", mock.Anything, fallbackInput).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 20))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})
	_, err := fg.Generate(context.Background(), fallbackInput)

	var rlErr *llm.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "all", rlErr.Provider)
	assert.LessOrEqual(t, rlErr.RetryAfter, 10*time.Second)
	assert.Equal(t, llm.CodeQuotaExceeded, llm.Classify(err).Code)
}

func TestFallbackGenerator_AllFail_NonRateLimit(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, llm.NewRateLimitError("gemini", errors.New("429"), 10))
	g2.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("internal server error"))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})
	_, err := fg.Generate(context.Background(), fallbackInput)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	var rlErr *llm.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}

func TestFallbackGenerator_ConcurrentSafety(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, llm.NewRateLimitError("gemini", errors.New("429"), 60))
	g2.On("Generate", mock.Anything, fallbackInput).Return(&port.GenerateOutput{Text: "ok"}, nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := fg.Generate(context.Background(), fallbackInput)
			assert.NoError(t, err)
			assert.Equal(t, "ok", out.Text)
		}()
	}
	wg.Wait()
}

func TestFallbackGenerator_CredentialFailureOpensCircuit(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("API key not valid. Please pass a valid API key."))
	g2.On("Generate", mock.Anything, fallbackInput).Return(&port.GenerateOutput{Text: "b", Model: "claude"}, nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	for i := 0; i < 3; i++ {
		out, err := fg.Generate(context.Background(), fallbackInput)
		require.NoError(t, err)
		assert.Equal(t, "claude", out.Model)
	}
	g1.AssertNumberOfCalls(t, "Generate", 1)
}

func TestFallbackGenerator_AllCredentialsRejected(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("invalid api key"))
	g2.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("invalid api key provided"))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	_, err := fg.Generate(context.Background(), fallbackInput)
	require.Error(t, err)
	assert.Equal(t, llm.CodeInvalidAPIKey, llm.Classify(err).Code)
	var rlErr *llm.RateLimitError
	assert.False(t, errors.As(err, &rlErr))

	// Both circuits are open now; the failure keeps its code instead of
	// turning into a rate limit.
	_, err = fg.Generate(context.Background(), fallbackInput)
	require.Error(t, err)
	assert.Equal(t, llm.CodeInvalidAPIKey, llm.Classify(err).Code)
	assert.False(t, llm.Classify(err).Retryable())
	g1.AssertNumberOfCalls(t, "Generate", 1)
	g2.AssertNumberOfCalls(t, "Generate", 1)
}

func TestFallbackGenerator_InputFaultStopsChain(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("response blocked by safety settings"))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	_, err := fg.Generate(context.Background(), fallbackInput)
	require.Error(t, err)
	assert.Equal(t, llm.CodeContentBlocked, llm.Classify(err).Code)
	g2.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	// Input faults leave the circuit closed.
	_, _ = fg.Generate(context.Background(), fallbackInput)
	g1.AssertNumberOfCalls(t, "Generate", 2)
}

func TestFallbackGenerator_QuotaMessageOpensCircuit(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("quota exceeded for project"))
	g2.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("quota exceeded for org"))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	_, err := fg.Generate(context.Background(), fallbackInput)
	var rlErr *llm.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 60*time.Second, rlErr.RetryAfter)

	_, err = fg.Generate(context.Background(), fallbackInput)
	require.True(t, errors.As(err, &rlErr))
	g1.AssertNumberOfCalls(t, "Generate", 1)
	g2.AssertNumberOfCalls(t, "Generate", 1)
}

func TestFallbackGenerator_TransientFailureKeepsCircuitClosed(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, fallbackInput).Return(nil, errors.New("502 bad gateway"))
	g2.On("Generate", mock.Anything, fallbackInput).Return(&port.GenerateOutput{Text: "b"}, nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"gemini", "claude"})

	for i := 0; i < 2; i++ {
		_, err := fg.Generate(context.Background(), fallbackInput)
		require.NoError(t, err)
	}
	g1.AssertNumberOfCalls(t, "Generate", 2)
}
