package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"parserator/internal/config"
	"parserator/internal/domain"
	"parserator/internal/logger"
)

const (
	architectWeight = 0.3
	extractorWeight = 0.7
)

// ParseInput is one parse request as accepted by the orchestrator.
type ParseInput struct {
	InputData    string
	OutputSchema *domain.OutputSchema
	Instructions string
	RequestID    string
	// AccountID scopes webhook events and archived results. uuid.Nil disables both.
	AccountID uuid.UUID
	// MaxInputBytes is the caller's tier ceiling. Zero uses the pipeline limit.
	MaxInputBytes int
}

// EventPublisher delivers pipeline events without blocking the caller.
type EventPublisher interface {
	Publish(accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{})
}

// ResultArchiver stores successful results without blocking the caller.
type ResultArchiver interface {
	Archive(accountID uuid.UUID, result *domain.ParseResult)
}

// ParseService orchestrates planning and extraction for one request.
type ParseService interface {
	Parse(ctx context.Context, input ParseInput) (*domain.ParseResult, error)
}

type parseService struct {
	architect ArchitectService
	extractor ExtractorService
	events    EventPublisher
	archiver  ResultArchiver
	cfg       config.PipelineConfig
}

// NewParseService creates a new ParseService implementation. events and archiver may be nil.
func NewParseService(
	architect ArchitectService,
	extractor ExtractorService,
	events EventPublisher,
	archiver ResultArchiver,
	cfg config.PipelineConfig,
) ParseService {
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = 1 << 20
	}
	if cfg.MaxSchemaFields <= 0 {
		cfg.MaxSchemaFields = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ArchitectShare <= 0 || cfg.ArchitectShare >= 1 {
		cfg.ArchitectShare = 0.4
	}
	return &parseService{
		architect: architect,
		extractor: extractor,
		events:    events,
		archiver:  archiver,
		cfg:       cfg,
	}
}

// pipelineRun tracks the state machine of a single request.
type pipelineRun struct {
	state       domain.PipelineState
	transitions []domain.PipelineState
}

func newPipelineRun() *pipelineRun {
	return &pipelineRun{
		state:       domain.StateReceived,
		transitions: []domain.PipelineState{domain.StateReceived},
	}
}

var errIllegalTransition = errors.New("illegal pipeline transition")

func (r *pipelineRun) advance(next domain.PipelineState) error {
	if !r.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, r.state, next)
	}
	r.state = next
	r.transitions = append(r.transitions, next)
	return nil
}

func (s *parseService) Parse(ctx context.Context, input ParseInput) (*domain.ParseResult, error) {
	start := time.Now()
	requestID := input.RequestID
	if requestID == "" {
		requestID = domain.NewOperationID("parse")
	}
	log := logger.With("request_id", requestID)
	run := newPipelineRun()

	if pErr := s.validateInput(input); pErr != nil {
		log.Warn("service.ParseService.Parse: request rejected", "code", pErr.Code)
		return s.failed(run, input.AccountID, requestID, pErr)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	architectBudget := time.Duration(float64(s.cfg.Timeout) * s.cfg.ArchitectShare)
	extractorBudget := s.cfg.Timeout - architectBudget

	if err := run.advance(domain.StatePlanning); err != nil {
		return nil, fmt.Errorf("service.ParseService.Parse: %w", err)
	}
	planned, err := s.architect.GenerateSearchPlan(ctx, ArchitectInput{
		OutputSchema: input.OutputSchema,
		InputSample:  input.InputData,
		Instructions: input.Instructions,
		RequestID:    requestID,
		Timeout:      architectBudget,
	})
	if err != nil {
		log.Error("service.ParseService.Parse: architect failed unexpectedly", "error", err)
		return s.failed(run, input.AccountID, requestID, domain.NewPipelineError(domain.StageArchitect,
			domain.CodeUnexpectedArchitect, "unexpected error while planning", nil))
	}
	if !planned.Success {
		return s.failed(run, input.AccountID, requestID, planned.Error)
	}
	if err := run.advance(domain.StatePlanValidated); err != nil {
		return nil, fmt.Errorf("service.ParseService.Parse: %w", err)
	}

	if err := run.advance(domain.StateExtracting); err != nil {
		return nil, fmt.Errorf("service.ParseService.Parse: %w", err)
	}
	extracted, err := s.extractor.ExecuteSearchPlan(ctx, ExtractorInput{
		InputData:      input.InputData,
		SearchPlan:     planned.SearchPlan,
		RequestID:      requestID,
		MaxInputLength: input.MaxInputBytes,
		Timeout:        extractorBudget,
	})
	if err != nil {
		log.Error("service.ParseService.Parse: extractor failed unexpectedly", "error", err)
		return s.failed(run, input.AccountID, requestID, domain.NewPipelineError(domain.StageExtractor,
			domain.CodeUnexpectedExtractor, "unexpected error while extracting", nil))
	}
	if !extracted.Success {
		return s.failed(run, input.AccountID, requestID, extracted.Error)
	}
	if err := run.advance(domain.StateComplete); err != nil {
		return nil, fmt.Errorf("service.ParseService.Parse: %w", err)
	}

	plan := planned.SearchPlan
	res := extracted.Result
	confidence := finalConfidence(plan.ArchitectConfidence, res.OverallConfidence)

	var warnings []string
	if confidence < s.cfg.MinOverallConfidence {
		warnings = append(warnings, domain.CodeLowOverallConfidence)
	}

	result := &domain.ParseResult{
		Success:    true,
		ParsedData: res.ParsedData,
		Metadata: &domain.ParseMetadata{
			ArchitectPlan:    plan,
			Confidence:       confidence,
			TokensUsed:       planned.TokensUsed + extracted.TokensUsed,
			ArchitectTokens:  planned.TokensUsed,
			ExtractorTokens:  extracted.TokensUsed,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			RequestID:        requestID,
			Timestamp:        time.Now().UTC(),
			StageBreakdown: domain.StageBreakdown{
				Architect: domain.StageStats{
					TimeMs:     planned.ProcessingTime.Milliseconds(),
					Tokens:     planned.TokensUsed,
					Confidence: plan.ArchitectConfidence,
				},
				Extractor: domain.StageStats{
					TimeMs:     extracted.ProcessingTime.Milliseconds(),
					Tokens:     extracted.TokensUsed,
					Confidence: res.OverallConfidence,
				},
			},
			FailedFields:    res.FailedFields,
			FieldConfidence: res.FieldConfidence,
			State:           run.state,
			Warnings:        warnings,
		},
		State:       run.state,
		Transitions: run.transitions,
	}

	log.Info("service.ParseService.Parse: completed",
		"confidence", confidence,
		"tokens", result.Metadata.TokensUsed,
		"failed_fields", len(res.FailedFields),
		"processing_time_ms", result.Metadata.ProcessingTimeMs)

	if input.AccountID != uuid.Nil {
		if s.events != nil {
			s.events.Publish(input.AccountID, domain.EventParseCompleted, requestID, map[string]interface{}{
				"confidence":       confidence,
				"tokensUsed":       result.Metadata.TokensUsed,
				"processingTimeMs": result.Metadata.ProcessingTimeMs,
				"failedFields":     res.FailedFields,
			})
		}
		if s.cfg.ArchiveResults && s.archiver != nil {
			s.archiver.Archive(input.AccountID, result)
		}
	}
	return result, nil
}

func (s *parseService) failed(run *pipelineRun, accountID uuid.UUID, requestID string, pErr *domain.PipelineError) (*domain.ParseResult, error) {
	if pErr == nil {
		pErr = domain.NewPipelineError(domain.StageOrchestration, domain.CodeUnexpected, "stage failed without an error", nil)
	}
	if pErr.Stage == "" {
		pErr.Stage = domain.StageOrchestration
	}
	pErr.WithDetail("requestId", requestID).WithDetail("stage", string(pErr.Stage))

	if err := run.advance(domain.StateFailed); err != nil {
		return nil, fmt.Errorf("service.ParseService.Parse: %w", err)
	}

	if accountID != uuid.Nil && s.events != nil {
		s.events.Publish(accountID, domain.EventParseFailed, requestID, map[string]interface{}{
			"code":  pErr.Code,
			"stage": string(pErr.Stage),
		})
	}
	return &domain.ParseResult{
		Success:     false,
		Error:       pErr,
		State:       run.state,
		Transitions: run.transitions,
	}, nil
}

func (s *parseService) validateInput(input ParseInput) *domain.PipelineError {
	schema := input.OutputSchema
	if schema == nil {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeInvalidOutputSchema,
			"outputSchema is required and must be an object", nil)
	}
	if schema.Len() == 0 {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeEmptyOutputSchema,
			"outputSchema must have at least one field", nil)
	}
	if schema.Len() > s.cfg.MaxSchemaFields {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeSchemaTooLarge,
			fmt.Sprintf("outputSchema has %d fields, exceeding limit of %d", schema.Len(), s.cfg.MaxSchemaFields),
			map[string]interface{}{"fieldCount": schema.Len(), "limit": s.cfg.MaxSchemaFields})
	}
	if err := schema.Validate(); err != nil {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeInvalidFieldType,
			err.Error(), map[string]interface{}{"validTypes": domain.ValidationTypes})
	}

	if input.InputData == "" || !utf8.ValidString(input.InputData) {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeInvalidInputData,
			"inputData is required and must be a UTF-8 string", nil)
	}
	if strings.TrimSpace(input.InputData) == "" {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeEmptyInputData,
			"inputData cannot be empty or only whitespace", nil)
	}
	size := len(input.InputData)
	if size > s.cfg.MaxInputBytes {
		return domain.NewPipelineError(domain.StageValidation, domain.CodePayloadTooLarge,
			fmt.Sprintf("inputData is %d bytes, exceeding the maximum of %d", size, s.cfg.MaxInputBytes),
			map[string]interface{}{"inputBytes": size, "limit": s.cfg.MaxInputBytes})
	}
	if input.MaxInputBytes > 0 && size > input.MaxInputBytes {
		return domain.NewPipelineError(domain.StageValidation, domain.CodeInputTooLarge,
			fmt.Sprintf("inputData is %d bytes, exceeding your tier limit of %d", size, input.MaxInputBytes),
			map[string]interface{}{"inputBytes": size, "limit": input.MaxInputBytes})
	}
	return nil
}

// finalConfidence blends stage confidences and caps the result by the plan's confidence.
func finalConfidence(architect, extractor float64) float64 {
	c := architectWeight*architect + extractorWeight*extractor
	if c > architect {
		c = architect
	}
	return math.Round(math.Max(0, math.Min(1, c))*1000) / 1000
}
