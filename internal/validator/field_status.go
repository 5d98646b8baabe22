package validator

import (
	"math"
	"strings"
)

// FieldState is the validation outcome of one extracted field.
type FieldState string

const (
	FieldValid   FieldState = "valid"
	FieldInvalid FieldState = "invalid"
	FieldMissing FieldState = "missing"
)

// FieldStatus represents the computed validation state for a single target key.
type FieldStatus struct {
	State      FieldState `json:"state"`
	Confidence float64    `json:"confidence"`
	Message    string     `json:"message,omitempty"`
}

const (
	confidencePresent         = 0.8
	confidenceTypeBonus       = 0.1
	confidencePatternBonus    = 0.05
	confidenceNoteBonus       = 0.05
	confidenceNotePenalty     = 0.2
	confidenceInvalid         = 0.2
	confidenceMissingRequired = 0.1
	confidenceMissingOptional = 0.7
)

// scoreField derives a field's confidence from its validation outcome and the
// extractor's note for it.
func scoreField(state FieldState, required, patternMatched bool, note string) float64 {
	var c float64
	switch state {
	case FieldMissing:
		if required {
			c = confidenceMissingRequired
		} else {
			c = confidenceMissingOptional
		}
	case FieldInvalid:
		c = confidenceInvalid
	default:
		c = confidencePresent + confidenceTypeBonus
		if patternMatched {
			c += confidencePatternBonus
		}
		n := strings.ToLower(note)
		if strings.Contains(n, "clear") || strings.Contains(n, "exact") {
			c += confidenceNoteBonus
		}
		if strings.Contains(n, "unsure") || strings.Contains(n, "guess") {
			c -= confidenceNotePenalty
		}
	}
	return round3(clamp01(c))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
