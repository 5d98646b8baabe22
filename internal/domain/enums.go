package domain

// Tier is an account's subscription tier. Tiers are ordered by increasing limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 2,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank returns the tier's position in the limit ordering, or -1 if unknown.
func (t Tier) Rank() int {
	r, ok := tierRank[t]
	if !ok {
		return -1
	}
	return r
}

// Environment distinguishes live keys from test keys.
type Environment string

const (
	EnvironmentLive Environment = "live"
	EnvironmentTest Environment = "test"
)

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvironmentLive || e == EnvironmentTest
}

// KeyPrefix returns the public secret prefix for the environment.
func (e Environment) KeyPrefix() string {
	return "pk_" + string(e) + "_"
}

// ValidationType is the declared type of an extracted field.
type ValidationType string

const (
	ValidationString      ValidationType = "string"
	ValidationEmail       ValidationType = "email"
	ValidationNumber      ValidationType = "number"
	ValidationISODate     ValidationType = "iso_date"
	ValidationStringArray ValidationType = "string_array"
	ValidationBoolean     ValidationType = "boolean"
	ValidationURL         ValidationType = "url"
	ValidationPhone       ValidationType = "phone"
	ValidationJSONObject  ValidationType = "json_object"
)

// ValidationTypes lists every supported validation type.
var ValidationTypes = []ValidationType{
	ValidationString,
	ValidationEmail,
	ValidationNumber,
	ValidationISODate,
	ValidationStringArray,
	ValidationBoolean,
	ValidationURL,
	ValidationPhone,
	ValidationJSONObject,
}

// validationAliases maps loose type names accepted in output schemas to canonical types.
var validationAliases = map[string]ValidationType{
	"text":     ValidationString,
	"date":     ValidationISODate,
	"integer":  ValidationNumber,
	"int":      ValidationNumber,
	"float":    ValidationNumber,
	"decimal":  ValidationNumber,
	"bool":     ValidationBoolean,
	"array":    ValidationStringArray,
	"string[]": ValidationStringArray,
	"object":   ValidationJSONObject,
	"json":     ValidationJSONObject,
}

// Valid reports whether v is one of the supported validation types.
func (v ValidationType) Valid() bool {
	for _, t := range ValidationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseValidationType resolves a type name, including aliases, to its canonical form.
func ParseValidationType(name string) (ValidationType, bool) {
	v := ValidationType(name)
	if v.Valid() {
		return v, true
	}
	if alias, ok := validationAliases[name]; ok {
		return alias, true
	}
	return "", false
}

// Complexity is the architect's estimate of extraction difficulty.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// PipelineStage identifies where in the pipeline a failure happened.
type PipelineStage string

const (
	StageValidation    PipelineStage = "validation"
	StageArchitect     PipelineStage = "architect"
	StageExtractor     PipelineStage = "extractor"
	StageOrchestration PipelineStage = "orchestration"
)

// PipelineState is the lifecycle state of a single parse request.
type PipelineState string

const (
	StateReceived      PipelineState = "RECEIVED"
	StatePlanning      PipelineState = "PLANNING"
	StatePlanValidated PipelineState = "PLAN_VALIDATED"
	StateExtracting    PipelineState = "EXTRACTING"
	StateComplete      PipelineState = "COMPLETE"
	StateFailed        PipelineState = "FAILED"
)

var pipelineTransitions = map[PipelineState][]PipelineState{
	StateReceived:      {StatePlanning, StateFailed},
	StatePlanning:      {StatePlanValidated, StateFailed},
	StatePlanValidated: {StateExtracting, StateFailed},
	StateExtracting:    {StateComplete, StateFailed},
}

// CanTransition reports whether moving from s to next is allowed.
// COMPLETE and FAILED are terminal.
func (s PipelineState) CanTransition(next PipelineState) bool {
	for _, allowed := range pipelineTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s PipelineState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// WebhookEvent names an event that webhooks can subscribe to.
type WebhookEvent string

const (
	EventParseCompleted    WebhookEvent = "parse.completed"
	EventParseFailed       WebhookEvent = "parse.failed"
	EventUsageLimitReached WebhookEvent = "usage.limit_reached"
	EventAPIKeyCreated     WebhookEvent = "api_key.created"
	EventAPIKeyDeactivated WebhookEvent = "api_key.deactivated"
)

// WebhookEvents lists every subscribable event.
var WebhookEvents = []WebhookEvent{
	EventParseCompleted,
	EventParseFailed,
	EventUsageLimitReached,
	EventAPIKeyCreated,
	EventAPIKeyDeactivated,
}

// Valid reports whether e is a known webhook event.
func (e WebhookEvent) Valid() bool {
	for _, known := range WebhookEvents {
		if e == known {
			return true
		}
	}
	return false
}
