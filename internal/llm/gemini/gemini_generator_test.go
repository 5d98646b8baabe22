package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parserator/internal/config"
	"parserator/internal/llm"
	"parserator/internal/llm/gemini"
	"parserator/internal/port"
)

func newTestGenerator(t *testing.T, serverURL string) *gemini.Generator {
	t.Helper()
	g, err := gemini.NewGenerator(&config.LLMProviderConfig{
		Provider:     "gemini",
		APIKey:       "test-api-key",
		DefaultModel: "gemini-1.5-flash",
		BaseURL:      serverURL,
	})
	require.NoError(t, err)
	return g
}

func TestGeminiGenerator_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-1.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		genCfg, _ := body["generationConfig"].(map[string]interface{})
		assert.Equal(t, float64(2048), genCfg["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"steps\": []}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
		}`))
	}))
	defer server.Close()

	out, err := newTestGenerator(t, server.URL).Generate(context.Background(), port.GenerateInput{
		Prompt:    "plan this",
		MaxTokens: 2048,
		TopP:      0.8,
		TopK:      40,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"steps": []}`, out.Text)
	assert.Equal(t, "STOP", out.FinishReason)
	assert.Equal(t, 12, out.PromptTokens)
	assert.Equal(t, 8, out.CompletionTokens)
	assert.Equal(t, 20, out.TotalTokens)
}

func TestGeminiGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "p", MaxTokens: 10})

	var rlErr *llm.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "gemini", rlErr.Provider)
}

func TestGeminiGenerator_Generate_SafetyBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"finishReason": "SAFETY"}]}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "p", MaxTokens: 10})

	require.Error(t, err)
	assert.Equal(t, llm.CodeContentBlocked, llm.Classify(err).Code)
}

func TestGeminiGenerator_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	out, err := newTestGenerator(t, server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "p", MaxTokens: 10})

	assert.NoError(t, err)
	assert.Nil(t, out)
}
