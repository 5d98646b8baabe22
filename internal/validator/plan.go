package validator

import (
	"fmt"
	"strings"

	"parserator/internal/domain"
)

const minInstructionLength = 10

// PlanRules bounds an acceptable search plan.
type PlanRules struct {
	MinConfidence float64
	MaxFieldCount int
}

// ValidateStep checks a single step's target key, instruction and type.
func ValidateStep(index int, step domain.SearchStep) *domain.PipelineError {
	if strings.TrimSpace(step.TargetKey) == "" {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidSearchStep,
			fmt.Sprintf("step %d: targetKey must be a non-empty string", index),
			map[string]interface{}{"stepIndex": index, "field": "targetKey"})
	}
	if len([]rune(strings.TrimSpace(step.SearchInstruction))) < minInstructionLength {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidSearchStep,
			fmt.Sprintf("step %d: searchInstruction must be at least %d characters", index, minInstructionLength),
			map[string]interface{}{"stepIndex": index, "field": "searchInstruction"})
	}
	if !step.ValidationType.Valid() {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeInvalidSearchStep,
			fmt.Sprintf("step %d: invalid validationType %q", index, step.ValidationType),
			map[string]interface{}{"stepIndex": index, "field": "validationType", "validTypes": domain.ValidationTypes})
	}
	return nil
}

// ValidatePlan checks confidence, size and exact coverage of the schema keys.
func ValidatePlan(plan *domain.SearchPlan, schema domain.OutputSchema, rules PlanRules) *domain.PipelineError {
	if plan.ArchitectConfidence < rules.MinConfidence {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeLowConfidence,
			fmt.Sprintf("search plan confidence %.2f below threshold %.2f", plan.ArchitectConfidence, rules.MinConfidence),
			map[string]interface{}{"confidence": plan.ArchitectConfidence, "threshold": rules.MinConfidence})
	}
	if rules.MaxFieldCount > 0 && len(plan.Steps) > rules.MaxFieldCount {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeTooManyFields,
			fmt.Sprintf("search plan has %d steps, exceeding limit of %d", len(plan.Steps), rules.MaxFieldCount),
			map[string]interface{}{"stepCount": len(plan.Steps), "limit": rules.MaxFieldCount})
	}

	schemaKeys := schema.Keys()
	planKeys := plan.TargetKeys()
	inPlan := make(map[string]int, len(planKeys))
	for _, k := range planKeys {
		inPlan[k]++
	}

	var missing []string
	for _, k := range schemaKeys {
		if inPlan[k] == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeMissingSchemaFields,
			"search plan missing steps for schema fields: "+strings.Join(missing, ", "),
			map[string]interface{}{"missingFields": missing, "schemaFields": schemaKeys, "planFields": planKeys})
	}

	var extra []string
	for _, k := range planKeys {
		if !schema.Has(k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeExtraSchemaFields,
			"search plan has steps for unknown fields: "+strings.Join(extra, ", "),
			map[string]interface{}{"extraFields": extra, "schemaFields": schemaKeys})
	}

	var dups []string
	for _, k := range planKeys {
		if inPlan[k] > 1 {
			dups = append(dups, k)
			inPlan[k] = 0
		}
	}
	if len(dups) > 0 {
		return domain.NewPipelineError(domain.StageArchitect, domain.CodeDuplicateTargetKeys,
			"search plan has duplicate target keys: "+strings.Join(dups, ", "),
			map[string]interface{}{"duplicateKeys": dups})
	}
	return nil
}
