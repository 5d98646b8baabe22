package domain

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// SearchStep is one field-level instruction produced by the architect.
type SearchStep struct {
	TargetKey         string         `json:"targetKey"`
	Description       string         `json:"description"`
	SearchInstruction string         `json:"searchInstruction"`
	ValidationType    ValidationType `json:"validationType"`
	IsRequired        bool           `json:"isRequired"`
	Examples          []string       `json:"examples,omitempty"`
	Pattern           string         `json:"pattern,omitempty"`
	DefaultValue      interface{}    `json:"defaultValue,omitempty"`
}

// PlanMetadata describes how a search plan was produced.
type PlanMetadata struct {
	CreatedAt        time.Time `json:"createdAt"`
	ArchitectVersion string    `json:"architectVersion"`
	SampleLength     int       `json:"sampleLength"`
	UserInstructions string    `json:"userInstructions,omitempty"`
}

// SearchPlan is the architect's validated extraction plan.
type SearchPlan struct {
	Steps                    []SearchStep `json:"steps"`
	TotalSteps               int          `json:"totalSteps"`
	EstimatedComplexity      Complexity   `json:"estimatedComplexity"`
	ArchitectConfidence      float64      `json:"architectConfidence"`
	EstimatedExtractorTokens int          `json:"estimatedExtractorTokens"`
	ExtractorInstructions    string       `json:"extractorInstructions,omitempty"`
	Metadata                 PlanMetadata `json:"metadata"`
}

// TargetKeys returns the step target keys in plan order.
func (p *SearchPlan) TargetKeys() []string {
	keys := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		keys[i] = s.TargetKey
	}
	return keys
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewOperationID returns an id of the form prefix_<base36 millis>_<6 random chars>.
func NewOperationID(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 36))
	b.WriteByte('_')
	radix := big.NewInt(int64(len(base36)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String()
}
