package service

import (
	"context"
	"errors"
	"strings"

	"parserator/internal/domain"
	"parserator/internal/llm"
)

// ModelGateway is the slice of llm.Gateway the pipeline stages depend on.
type ModelGateway interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (*llm.Response, error)
	TestConnection(ctx context.Context) (*llm.Response, error)
	Ready() bool
	Model() string
}

const previewLength = 200

// stripCodeFence removes a markdown code block wrapper around model JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength])
}

// gatewayFailure converts a classified gateway error into a stage failure.
// It reports false for anything else, which callers treat as unexpected.
func gatewayFailure(stage domain.PipelineStage, requestID string, err error) (*domain.PipelineError, bool) {
	var gwErr *llm.Error
	if !errors.As(err, &gwErr) {
		return nil, false
	}
	details := make(map[string]interface{}, len(gwErr.Details)+2)
	for k, v := range gwErr.Details {
		details[k] = v
	}
	details["requestId"] = requestID
	details["stage"] = string(stage)
	code := gwErr.Code
	if code == llm.CodeInvalidAPIKey {
		code = domain.CodeModelAuthError
	}
	return domain.NewPipelineError(stage, code, gwErr.Message, details), true
}
