package validator

import (
	"regexp"

	"parserator/internal/domain"
	"parserator/internal/logger"
)

const (
	requiredWeight = 2.0
	optionalWeight = 1.0
)

// Engine validates extractor output against a search plan.
type Engine struct {
	registry *Registry
}

// NewEngine creates a new validation engine.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &Engine{registry: registry}
}

// Validate shapes extracted to exactly the plan's target keys, coerces each
// value to its declared type, nulls values that fail, and scores confidence.
func (e *Engine) Validate(plan *domain.SearchPlan, extracted map[string]interface{}, notes map[string]string) (*domain.ExtractionResult, map[string]FieldStatus) {
	result := &domain.ExtractionResult{
		ParsedData:      make(map[string]interface{}, len(plan.Steps)),
		FieldConfidence: make(map[string]float64, len(plan.Steps)),
		FailedFields:    []string{},
		ExtractionNotes: notes,
	}
	statuses := make(map[string]FieldStatus, len(plan.Steps))

	var weightedSum, totalWeight float64
	for _, step := range plan.Steps {
		status := e.validateField(step, extracted, notes[step.TargetKey], result)
		statuses[step.TargetKey] = status
		result.FieldConfidence[step.TargetKey] = status.Confidence

		switch {
		case status.State == FieldInvalid:
			result.FailedFields = append(result.FailedFields, step.TargetKey)
			result.InvalidFields = append(result.InvalidFields, step.TargetKey)
		case status.State == FieldMissing && step.IsRequired:
			result.FailedFields = append(result.FailedFields, step.TargetKey)
		}

		w := optionalWeight
		if step.IsRequired {
			w = requiredWeight
		}
		weightedSum += status.Confidence * w
		totalWeight += w
	}

	if totalWeight > 0 {
		overall := weightedSum / totalWeight
		if overall > plan.ArchitectConfidence {
			overall = plan.ArchitectConfidence
		}
		result.OverallConfidence = round3(clamp01(overall))
	}
	return result, statuses
}

func (e *Engine) validateField(step domain.SearchStep, extracted map[string]interface{}, note string, result *domain.ExtractionResult) FieldStatus {
	key := step.TargetKey
	value, present := extracted[key]
	if !present && step.DefaultValue != nil {
		value = step.DefaultValue
	}
	result.ParsedData[key] = nil

	if value == nil || value == "" {
		msg := ""
		if step.IsRequired {
			msg = "required field is missing or empty"
		}
		return FieldStatus{State: FieldMissing, Confidence: scoreField(FieldMissing, step.IsRequired, false, note), Message: msg}
	}

	checker := e.registry.Get(step.ValidationType)
	if checker == nil {
		return FieldStatus{State: FieldInvalid, Confidence: scoreField(FieldInvalid, step.IsRequired, false, note), Message: "unknown validation type " + string(step.ValidationType)}
	}

	coerced, ok, msg := checker.Check(value)
	patternMatched := false
	if ok && step.Pattern != "" {
		if s, isString := coerced.(string); isString {
			re, err := regexp.Compile(step.Pattern)
			switch {
			case err != nil:
				logger.Warn("validator.Engine.Validate: ignoring invalid pattern", "field", key, "pattern", step.Pattern, "error", err)
			case re.MatchString(s):
				patternMatched = true
			default:
				ok = false
				msg = "does not match pattern " + step.Pattern
			}
		}
	}

	if !ok {
		return FieldStatus{State: FieldInvalid, Confidence: scoreField(FieldInvalid, step.IsRequired, false, note), Message: msg}
	}

	result.ParsedData[key] = coerced
	return FieldStatus{State: FieldValid, Confidence: scoreField(FieldValid, step.IsRequired, patternMatched, note)}
}

// AllFailed reports whether every step of a non-empty plan failed, required or not.
func AllFailed(plan *domain.SearchPlan, result *domain.ExtractionResult) bool {
	return len(plan.Steps) > 0 && len(result.FailedFields) == len(plan.Steps)
}
