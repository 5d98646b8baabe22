package domain

import "time"

// ExtractionResult is the extractor's validated output. ParsedData holds
// exactly the plan's target keys; unresolved fields are nil.
type ExtractionResult struct {
	ParsedData        map[string]interface{} `json:"parsedData"`
	FieldConfidence   map[string]float64     `json:"fieldConfidence"`
	FailedFields      []string               `json:"failedFields"`
	InvalidFields     []string               `json:"invalidFields,omitempty"`
	OverallConfidence float64                `json:"overallConfidence"`
	ExtractionNotes   map[string]string      `json:"extractionNotes,omitempty"`
}

// StageStats summarizes one pipeline stage.
type StageStats struct {
	TimeMs     int64   `json:"timeMs"`
	Tokens     int     `json:"tokens"`
	Confidence float64 `json:"confidence"`
}

// StageBreakdown splits time and tokens between the two stages.
type StageBreakdown struct {
	Architect StageStats `json:"architect"`
	Extractor StageStats `json:"extractor"`
}

// ParseMetadata accompanies a successful parse.
type ParseMetadata struct {
	ArchitectPlan    *SearchPlan        `json:"architectPlan"`
	Confidence       float64            `json:"confidence"`
	TokensUsed       int                `json:"tokensUsed"`
	ArchitectTokens  int                `json:"architectTokens"`
	ExtractorTokens  int                `json:"extractorTokens"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
	RequestID        string             `json:"requestId"`
	Timestamp        time.Time          `json:"timestamp"`
	StageBreakdown   StageBreakdown     `json:"stageBreakdown"`
	FailedFields     []string           `json:"failedFields"`
	FieldConfidence  map[string]float64 `json:"fieldConfidence,omitempty"`
	State            PipelineState      `json:"state"`
	Warnings         []string           `json:"warnings,omitempty"`
}

// ParseResult is the orchestrator's terminal outcome. Exactly one of
// ParsedData/Metadata or Error is meaningful, selected by Success.
type ParseResult struct {
	Success     bool                   `json:"success"`
	ParsedData  map[string]interface{} `json:"parsedData,omitempty"`
	Metadata    *ParseMetadata         `json:"metadata,omitempty"`
	Error       *PipelineError         `json:"error,omitempty"`
	State       PipelineState          `json:"-"`
	Transitions []PipelineState        `json:"-"`
}
