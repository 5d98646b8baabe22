package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parserator/internal/config"
	"parserator/internal/llm"
	"parserator/internal/port"
)

// stubGenerator is a minimal TextGenerator for testing the factory.
type stubGenerator struct {
	model string
}

func (s *stubGenerator) Generate(_ context.Context, _ port.GenerateInput) (*port.GenerateOutput, error) {
	return &port.GenerateOutput{Text: "ok", Model: s.model}, nil
}

func registerStub() {
	llm.RegisterProvider("stub-provider", func(cfg *config.LLMProviderConfig) (port.TextGenerator, error) {
		return &stubGenerator{model: cfg.DefaultModel}, nil
	})
}

func TestFactory_RegisterAndCreate(t *testing.T) {
	registerStub()

	g, err := llm.NewGenerator(&config.LLMProviderConfig{Provider: "stub-provider", DefaultModel: "m1"})

	require.NoError(t, err)
	out, err := g.Generate(context.Background(), port.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, "m1", out.Model)
}

func TestFactory_UnknownProvider(t *testing.T) {
	g, err := llm.NewGenerator(&config.LLMProviderConfig{Provider: "nonexistent-provider-xyz"})

	assert.Nil(t, g)
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestNewGeneratorChain(t *testing.T) {
	registerStub()

	single, err := llm.NewGeneratorChain([]*config.LLMProviderConfig{{Provider: "stub-provider"}})
	require.NoError(t, err)
	assert.IsType(t, &stubGenerator{}, single)

	chain, err := llm.NewGeneratorChain([]*config.LLMProviderConfig{
		{Provider: "stub-provider"},
		{Provider: "stub-provider"},
	})
	require.NoError(t, err)
	assert.IsType(t, &llm.FallbackGenerator{}, chain)

	_, err = llm.NewGeneratorChain(nil)
	assert.Error(t, err)
}
