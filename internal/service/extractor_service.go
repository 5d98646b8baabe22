package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"parserator/internal/config"
	"parserator/internal/domain"
	"parserator/internal/llm"
	"parserator/internal/logger"
	"parserator/internal/validator"
)

const maxExtractorTokens = 8192

var complexityTokenScale = map[domain.Complexity]float64{
	domain.ComplexityLow:    1.0,
	domain.ComplexityMedium: 1.5,
	domain.ComplexityHigh:   2.0,
}

// ExtractorInput is an extraction request against a validated plan.
type ExtractorInput struct {
	InputData  string
	SearchPlan *domain.SearchPlan
	RequestID  string
	// MaxInputLength overrides the configured input ceiling when positive.
	MaxInputLength int
	// Timeout lowers the configured model timeout when positive.
	Timeout time.Duration
}

// ExtractorResult is the outcome of extraction. Error is set when Success is false.
type ExtractorResult struct {
	Success        bool
	Result         *domain.ExtractionResult
	FieldStatus    map[string]validator.FieldStatus
	TokensUsed     int
	ProcessingTime time.Duration
	Model          string
	Error          *domain.PipelineError
}

// ExtractorService executes a search plan against the full input.
type ExtractorService interface {
	ExecuteSearchPlan(ctx context.Context, input ExtractorInput) (*ExtractorResult, error)
}

type extractorService struct {
	gateway ModelGateway
	engine  *validator.Engine
	cfg     config.ExtractorConfig
}

// NewExtractorService creates a new ExtractorService implementation.
func NewExtractorService(gateway ModelGateway, engine *validator.Engine, cfg config.ExtractorConfig) ExtractorService {
	if engine == nil {
		engine = validator.NewEngine(nil)
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = 100000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 3072
	}
	return &extractorService{gateway: gateway, engine: engine, cfg: cfg}
}

func (s *extractorService) fail(start time.Time, tokens int, pErr *domain.PipelineError) *ExtractorResult {
	return &ExtractorResult{
		Success:        false,
		TokensUsed:     tokens,
		ProcessingTime: time.Since(start),
		Error:          pErr,
	}
}

func (s *extractorService) ExecuteSearchPlan(ctx context.Context, input ExtractorInput) (*ExtractorResult, error) {
	start := time.Now()
	requestID := input.RequestID
	if requestID == "" {
		requestID = domain.NewOperationID("extract")
	}
	log := logger.With("request_id", requestID, "stage", string(domain.StageExtractor))

	if pErr := s.validateInput(input); pErr != nil {
		log.Warn("service.ExtractorService.ExecuteSearchPlan: input rejected", "code", pErr.Code)
		return s.fail(start, 0, pErr.WithDetail("requestId", requestID)), nil
	}
	plan := input.SearchPlan

	prompt, err := BuildExtractorPrompt(input.InputData, plan)
	if err != nil {
		return nil, fmt.Errorf("service.ExtractorService.ExecuteSearchPlan: %w", err)
	}

	timeout := s.cfg.Timeout
	if input.Timeout > 0 && input.Timeout < timeout {
		timeout = input.Timeout
	}
	maxTokens := s.tokenBudget(plan)

	log.Info("service.ExtractorService.ExecuteSearchPlan: executing plan",
		"steps", len(plan.Steps),
		"input_length", utf8.RuneCountInString(input.InputData),
		"max_tokens", maxTokens)

	resp, err := s.gateway.Generate(ctx, prompt, llm.Options{
		MaxTokens:   maxTokens,
		Temperature: llm.Ptr(s.cfg.Temperature),
		Timeout:     timeout,
		RequestID:   requestID,
	})
	if err != nil {
		pErr, ok := gatewayFailure(domain.StageExtractor, requestID, err)
		if !ok {
			return nil, fmt.Errorf("service.ExtractorService.ExecuteSearchPlan: %w", err)
		}
		log.Warn("service.ExtractorService.ExecuteSearchPlan: model call failed", "code", pErr.Code)
		return s.fail(start, 0, pErr), nil
	}

	extracted, notes, pErr := parseExtraction(resp.Content)
	if pErr != nil {
		log.Warn("service.ExtractorService.ExecuteSearchPlan: response rejected", "code", pErr.Code)
		return s.fail(start, resp.TokensUsed, pErr.WithDetail("requestId", requestID)), nil
	}

	result, statuses := s.engine.Validate(plan, extracted, notes)
	if validator.AllFailed(plan, result) {
		pErr := domain.NewPipelineError(domain.StageExtractor, domain.CodeAllFieldsFailed,
			"no field could be extracted and validated",
			map[string]interface{}{"requestId": requestID, "failedFields": result.FailedFields})
		log.Warn("service.ExtractorService.ExecuteSearchPlan: all fields failed", "fields", len(plan.Steps))
		return s.fail(start, resp.TokensUsed, pErr), nil
	}

	if result.OverallConfidence < s.cfg.MinConfidence {
		log.Warn("service.ExtractorService.ExecuteSearchPlan: low extraction confidence",
			"confidence", result.OverallConfidence,
			"threshold", s.cfg.MinConfidence)
	}
	log.Info("service.ExtractorService.ExecuteSearchPlan: extraction complete",
		"failed_fields", len(result.FailedFields),
		"confidence", result.OverallConfidence,
		"tokens", resp.TokensUsed)

	return &ExtractorResult{
		Success:        true,
		Result:         result,
		FieldStatus:    statuses,
		TokensUsed:     resp.TokensUsed,
		ProcessingTime: time.Since(start),
		Model:          resp.Model,
	}, nil
}

func (s *extractorService) validateInput(input ExtractorInput) *domain.PipelineError {
	limit := s.cfg.MaxInputLength
	if input.MaxInputLength > 0 {
		limit = input.MaxInputLength
	}
	if input.InputData == "" || !utf8.ValidString(input.InputData) {
		return domain.NewPipelineError(domain.StageExtractor, domain.CodeInvalidInputData,
			"input data must be a non-empty UTF-8 string", nil)
	}
	if strings.TrimSpace(input.InputData) == "" {
		return domain.NewPipelineError(domain.StageExtractor, domain.CodeEmptyInputData,
			"input data cannot be empty or only whitespace", nil)
	}
	if n := utf8.RuneCountInString(input.InputData); n > limit {
		return domain.NewPipelineError(domain.StageExtractor, domain.CodeInputTooLarge,
			fmt.Sprintf("input data length %d exceeds limit of %d", n, limit),
			map[string]interface{}{"inputLength": n, "limit": limit})
	}
	if input.SearchPlan == nil {
		return domain.NewPipelineError(domain.StageExtractor, domain.CodeInvalidSearchPlan,
			"search plan is required", nil)
	}
	if len(input.SearchPlan.Steps) == 0 {
		return domain.NewPipelineError(domain.StageExtractor, domain.CodeEmptySearchPlan,
			"search plan has no steps", nil)
	}
	return nil
}

// tokenBudget scales the configured budget by plan complexity, bounded by twice
// the architect's estimate and the model ceiling.
func (s *extractorService) tokenBudget(plan *domain.SearchPlan) int {
	scale, ok := complexityTokenScale[plan.EstimatedComplexity]
	if !ok {
		scale = complexityTokenScale[domain.ComplexityMedium]
	}
	budget := int(float64(s.cfg.MaxTokens) * scale)
	if est := plan.EstimatedExtractorTokens * 2; est > 0 && budget > est {
		budget = est
	}
	if budget > maxExtractorTokens {
		budget = maxExtractorTokens
	}
	return budget
}

func parseExtraction(content string) (map[string]interface{}, map[string]string, *domain.PipelineError) {
	clean := stripCodeFence(content)
	var envelope map[string]json.RawMessage
	if !json.Valid([]byte(clean)) {
		return nil, nil, domain.NewPipelineError(domain.StageExtractor, domain.CodeJSONParseError,
			"invalid JSON response from extractor",
			map[string]interface{}{"responsePreview": preview(content)})
	}
	if err := json.Unmarshal([]byte(clean), &envelope); err != nil || envelope == nil {
		return nil, nil, invalidExtractionFormat("response must be a JSON object", content)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(envelope["extractedData"], &data); err != nil || data == nil {
		return nil, nil, invalidExtractionFormat("missing or invalid extractedData object", content)
	}

	notes := map[string]string{}
	var rawNotes map[string]interface{}
	if json.Unmarshal(envelope["extractionNotes"], &rawNotes) == nil {
		for k, v := range rawNotes {
			if s, ok := v.(string); ok {
				notes[k] = s
			}
		}
	}
	return data, notes, nil
}

func invalidExtractionFormat(msg, content string) *domain.PipelineError {
	return domain.NewPipelineError(domain.StageExtractor, domain.CodeInvalidResponseFormat,
		"invalid extractor response: "+msg,
		map[string]interface{}{"responsePreview": preview(content)})
}
