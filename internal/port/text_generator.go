package port

import "context"

// GenerateInput carries one raw text-generation request to a model provider.
type GenerateInput struct {
	Prompt        string
	Model         string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	StopSequences []string
}

// GenerateOutput is a provider's raw completion. Token counts are zero when
// the provider reports no usage metadata.
type GenerateOutput struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// TextGenerator abstracts a single call to a remote text-generation model.
// A nil output with a nil error means the provider returned no response body.
type TextGenerator interface {
	Generate(ctx context.Context, input GenerateInput) (*GenerateOutput, error)
}
