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

// ArchitectInput is a planning request.
type ArchitectInput struct {
	OutputSchema *domain.OutputSchema
	InputSample  string
	Instructions string
	RequestID    string
	// Timeout lowers the configured model timeout when positive.
	Timeout time.Duration
}

// ArchitectResult is the outcome of planning. Error is set when Success is false.
type ArchitectResult struct {
	Success        bool
	SearchPlan     *domain.SearchPlan
	TokensUsed     int
	ProcessingTime time.Duration
	Error          *domain.PipelineError
}

// ArchitectService turns an output schema and an input sample into a validated search plan.
type ArchitectService interface {
	GenerateSearchPlan(ctx context.Context, input ArchitectInput) (*ArchitectResult, error)
}

type architectService struct {
	gateway ModelGateway
	cfg     config.ArchitectConfig
	now     func() time.Time
}

// NewArchitectService creates a new ArchitectService implementation.
func NewArchitectService(gateway ModelGateway, cfg config.ArchitectConfig) ArchitectService {
	if cfg.MaxSampleLength <= 0 {
		cfg.MaxSampleLength = 1000
	}
	if cfg.MaxFieldCount <= 0 {
		cfg.MaxFieldCount = 50
	}
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = "v2.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &architectService{gateway: gateway, cfg: cfg, now: time.Now}
}

func (s *architectService) fail(start time.Time, tokens int, pErr *domain.PipelineError) *ArchitectResult {
	return &ArchitectResult{
		Success:        false,
		TokensUsed:     tokens,
		ProcessingTime: time.Since(start),
		Error:          pErr,
	}
}

func (s *architectService) GenerateSearchPlan(ctx context.Context, input ArchitectInput) (*ArchitectResult, error) {
	start := time.Now()
	requestID := input.RequestID
	if requestID == "" {
		requestID = domain.NewOperationID("arch")
	}
	log := logger.With("request_id", requestID, "stage", string(domain.StageArchitect))

	if pErr := s.validateInput(input); pErr != nil {
		log.Warn("service.ArchitectService.GenerateSearchPlan: input rejected", "code", pErr.Code)
		return s.fail(start, 0, pErr.WithDetail("requestId", requestID)), nil
	}

	sample := truncateSample(input.InputSample, s.cfg.MaxSampleLength)
	prompt, err := BuildArchitectPrompt(*input.OutputSchema, sample, input.Instructions, s.cfg.PromptVersion, s.now())
	if err != nil {
		return nil, fmt.Errorf("service.ArchitectService.GenerateSearchPlan: %w", err)
	}

	timeout := s.cfg.Timeout
	if input.Timeout > 0 && input.Timeout < timeout {
		timeout = input.Timeout
	}

	log.Info("service.ArchitectService.GenerateSearchPlan: requesting plan",
		"fields", input.OutputSchema.Len(),
		"sample_length", utf8.RuneCountInString(sample))

	resp, err := s.gateway.Generate(ctx, prompt, llm.Options{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: llm.Ptr(s.cfg.Temperature),
		Timeout:     timeout,
		RequestID:   requestID,
	})
	if err != nil {
		pErr, ok := gatewayFailure(domain.StageArchitect, requestID, err)
		if !ok {
			return nil, fmt.Errorf("service.ArchitectService.GenerateSearchPlan: %w", err)
		}
		log.Warn("service.ArchitectService.GenerateSearchPlan: model call failed", "code", pErr.Code)
		return s.fail(start, 0, pErr), nil
	}

	plan, pErr := s.parsePlan(resp.Content, *input.OutputSchema, utf8.RuneCountInString(sample), input.Instructions)
	if pErr == nil {
		pErr = validator.ValidatePlan(plan, *input.OutputSchema, validator.PlanRules{
			MinConfidence: s.cfg.MinConfidence,
			MaxFieldCount: s.cfg.MaxFieldCount,
		})
	}
	if pErr != nil {
		log.Warn("service.ArchitectService.GenerateSearchPlan: plan rejected", "code", pErr.Code, "error", pErr.Message)
		return s.fail(start, resp.TokensUsed, pErr.WithDetail("requestId", requestID)), nil
	}

	log.Info("service.ArchitectService.GenerateSearchPlan: plan ready",
		"steps", len(plan.Steps),
		"confidence", plan.ArchitectConfidence,
		"complexity", plan.EstimatedComplexity,
		"tokens", resp.TokensUsed)

	return &ArchitectResult{
		Success:        true,
		SearchPlan:     plan,
		TokensUsed:     resp.TokensUsed,
		ProcessingTime: time.Since(start),
	}, nil
}

func (s *architectService) validateInput(input ArchitectInput) *domain.PipelineError {
	if input.OutputSchema == nil {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidOutputSchema,
			"output schema must be a non-null object", nil)
	}
	n := input.OutputSchema.Len()
	if n == 0 {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeEmptyOutputSchema,
			"output schema cannot be empty", nil)
	}
	if n > s.cfg.MaxFieldCount {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeSchemaTooLarge,
			fmt.Sprintf("output schema has %d fields, exceeding limit of %d", n, s.cfg.MaxFieldCount),
			map[string]interface{}{"fieldCount": n, "limit": s.cfg.MaxFieldCount})
	}
	if input.InputSample == "" || !utf8.ValidString(input.InputSample) {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidDataSample,
			"data sample must be a non-empty UTF-8 string", nil)
	}
	if strings.TrimSpace(input.InputSample) == "" {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeEmptyDataSample,
			"data sample cannot be empty or only whitespace", nil)
	}
	return nil
}

// truncateSample keeps the first max runes of sample, cutting back to the last
// sentence, line or word boundary when one falls in the final 30% of the budget.
func truncateSample(sample string, max int) string {
	runes := []rune(sample)
	if len(runes) <= max {
		return sample
	}
	runes = runes[:max]
	cut := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if r := runes[i]; r == '.' || r == '\n' || r == ' ' {
			cut = i
			break
		}
	}
	if float64(cut) > float64(max)*0.7 {
		runes = runes[:cut]
	}
	return string(runes)
}

type rawStep struct {
	TargetKey         string      `json:"targetKey"`
	Description       string      `json:"description"`
	SearchInstruction string      `json:"searchInstruction"`
	ValidationType    string      `json:"validationType"`
	IsRequired        *bool       `json:"isRequired"`
	Examples          []string    `json:"examples"`
	Pattern           string      `json:"pattern"`
	DefaultValue      interface{} `json:"defaultValue"`
}

type rawPlanMetadata struct {
	CreatedAt        string `json:"createdAt"`
	ArchitectVersion string `json:"architectVersion"`
}

func (s *architectService) parsePlan(content string, schema domain.OutputSchema, sampleLength int, instructions string) (*domain.SearchPlan, *domain.PipelineError) {
	clean := stripCodeFence(content)
	if !json.Valid([]byte(clean)) {
		return nil, domain.NewPipelineError(domain.StageArchitect, domain.CodeJSONParseError,
			"invalid JSON response from architect",
			map[string]interface{}{"responsePreview": preview(content)})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return nil, invalidPlanFormat("response must be a JSON object", content)
	}

	var rawSteps []json.RawMessage
	if err := json.Unmarshal(fields["steps"], &rawSteps); err != nil || rawSteps == nil {
		return nil, invalidPlanFormat("missing or invalid steps array", content)
	}
	var confidence float64
	rawConfidence := fields["architectConfidence"]
	if err := json.Unmarshal(rawConfidence, &confidence); err != nil || string(rawConfidence) == "null" {
		return nil, invalidPlanFormat("missing or invalid architectConfidence", content)
	}
	if confidence < 0 || confidence > 1 {
		return nil, invalidPlanFormat("architectConfidence must be between 0 and 1", content)
	}

	steps := make([]domain.SearchStep, 0, len(rawSteps))
	for i, raw := range rawSteps {
		var rs rawStep
		if err := json.Unmarshal(raw, &rs); err != nil {
			return nil, domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidSearchStep,
				fmt.Sprintf("step %d: %v", i, err),
				map[string]interface{}{"stepIndex": i})
		}
		step := rs.toStep(schema)
		if pErr := validator.ValidateStep(i, step); pErr != nil {
			return nil, pErr
		}
		steps = append(steps, step)
	}

	plan := &domain.SearchPlan{
		Steps:                    steps,
		TotalSteps:               len(steps),
		EstimatedComplexity:      domain.ComplexityMedium,
		ArchitectConfidence:      confidence,
		EstimatedExtractorTokens: 1000,
		Metadata: domain.PlanMetadata{
			CreatedAt:        s.now().UTC(),
			ArchitectVersion: s.cfg.PromptVersion,
			SampleLength:     sampleLength,
			UserInstructions: instructions,
		},
	}

	var complexity string
	if json.Unmarshal(fields["estimatedComplexity"], &complexity) == nil {
		switch c := domain.Complexity(strings.ToLower(complexity)); c {
		case domain.ComplexityLow, domain.ComplexityMedium, domain.ComplexityHigh:
			plan.EstimatedComplexity = c
		}
	}
	var tokens int
	if json.Unmarshal(fields["estimatedExtractorTokens"], &tokens) == nil && tokens > 0 {
		plan.EstimatedExtractorTokens = tokens
	}
	var total int
	if json.Unmarshal(fields["totalSteps"], &total) == nil && total > 0 {
		plan.TotalSteps = total
	}
	_ = json.Unmarshal(fields["extractorInstructions"], &plan.ExtractorInstructions)

	var meta rawPlanMetadata
	if json.Unmarshal(fields["metadata"], &meta) == nil {
		if t, err := time.Parse(time.RFC3339, meta.CreatedAt); err == nil {
			plan.Metadata.CreatedAt = t
		}
		if meta.ArchitectVersion != "" {
			plan.Metadata.ArchitectVersion = meta.ArchitectVersion
		}
	}
	return plan, nil
}

func (rs rawStep) toStep(schema domain.OutputSchema) domain.SearchStep {
	vt := domain.ValidationType(rs.ValidationType)
	if parsed, ok := domain.ParseValidationType(strings.ToLower(strings.TrimSpace(rs.ValidationType))); ok {
		vt = parsed
	}
	step := domain.SearchStep{
		TargetKey:         strings.TrimSpace(rs.TargetKey),
		Description:       rs.Description,
		SearchInstruction: rs.SearchInstruction,
		ValidationType:    vt,
		Examples:          rs.Examples,
		Pattern:           rs.Pattern,
		DefaultValue:      rs.DefaultValue,
	}
	if rs.IsRequired != nil {
		step.IsRequired = *rs.IsRequired
	} else if f, ok := schema.Field(step.TargetKey); ok {
		step.IsRequired = f.Required
	}
	return step
}

func invalidPlanFormat(msg, content string) *domain.PipelineError {
	return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidResponseFormat,
		"invalid architect response: "+msg,
		map[string]interface{}{"responsePreview": preview(content)})
}
