package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"parserator/internal/domain"
)

const fence = "```"

// BuildArchitectPrompt returns the planning prompt for a schema and a bounded input sample.
func BuildArchitectPrompt(schema domain.OutputSchema, sample, instructions, promptVersion string, now time.Time) (string, error) {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding output schema: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are the Architect in a two-stage data parsing system. Analyze the desired output schema and a sample of the input data, then create a SearchPlan the Extractor will follow against the full input.

## OUTPUT SCHEMA
` + fence + "json\n")
	b.Write(schemaJSON)
	b.WriteString("\n" + fence + "\n\n## DATA SAMPLE\n" + fence + "\n")
	b.WriteString(sample)
	b.WriteString("\n" + fence + "\n\n")

	if strings.TrimSpace(instructions) != "" {
		b.WriteString("## USER INSTRUCTIONS\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, `## RESPONSE FORMAT
Respond with ONLY a JSON object of this exact structure, with exactly one step per schema field:

%sjson
{
  "steps": [
    {
      "targetKey": "fieldName",
      "description": "What this data represents",
      "searchInstruction": "Direct, specific instruction for finding this value",
      "validationType": "%s",
      "isRequired": true,
      "examples": ["example1"],
      "pattern": "optional regex"
    }
  ],
  "totalSteps": %d,
  "estimatedComplexity": "low|medium|high",
  "architectConfidence": 0.95,
  "estimatedExtractorTokens": 1500,
  "extractorInstructions": "Any special guidance for the Extractor",
  "metadata": {
    "createdAt": "%s",
    "architectVersion": "%s"
  }
}
%s

## RULES
1. Each searchInstruction must be actionable: name the labels, delimiters or positions to look at.
   Bad: "Look for the customer name". Good: "Find the text after 'Customer:' that is a person's name".
2. Use the sample to learn how values are formatted so the instructions generalize to the full input.
3. Pick the validationType that matches the schema field type.
4. Set architectConfidence from how clear the patterns are:
   0.9+ clear and well structured, 0.7-0.89 some ambiguity, 0.5-0.69 messy or unclear.
5. Estimate complexity honestly: low for labelled values, medium when context is needed, high for ambiguous data.
6. Use only the schema field names as targetKey values. Never add or rename fields.

RESPOND WITH ONLY THE JSON. NO EXPLANATIONS OR MARKDOWN.`,
		fence,
		validationTypeList(),
		schema.Len(),
		now.UTC().Format(time.RFC3339),
		promptVersion,
		fence,
	)
	return b.String(), nil
}

// BuildExtractorPrompt returns the extraction prompt embedding the plan and the full input.
func BuildExtractorPrompt(input string, plan *domain.SearchPlan) (string, error) {
	stepsJSON, err := json.MarshalIndent(plan.Steps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding search plan: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are the Extractor in a two-stage data parsing system. Follow the SearchPlan exactly and extract the requested values from the input.

## INPUT DATA
` + fence + "\n")
	b.WriteString(input)
	b.WriteString("\n" + fence + "\n\n## SEARCH PLAN\n" + fence + "json\n")
	b.Write(stepsJSON)
	b.WriteString("\n" + fence + "\n\n")

	if strings.TrimSpace(plan.ExtractorInstructions) != "" {
		b.WriteString("## SPECIAL INSTRUCTIONS\n")
		b.WriteString(plan.ExtractorInstructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, `## RESPONSE FORMAT
Respond with ONLY a JSON object in this format:

%sjson
{
  "extractedData": {
    "targetKey": "value"
  },
  "extractionNotes": {
    "targetKey": "brief note about how clearly the value was found"
  }
}
%s

## RULES
1. Use each step's searchInstruction as the primary guide and its description to confirm the match.
2. Format every value for its validationType:
   string is trimmed text, email an address, number a JSON number, iso_date YYYY-MM-DD,
   string_array an array of strings, boolean true or false, url an absolute URL,
   phone any reasonable phone format, json_object a JSON object.
3. Use examples and pattern when given.
4. If a value is not present in the input set it to null. Never invent values.
5. Include every targetKey from the plan in extractedData, and no other keys.

RESPOND WITH ONLY THE JSON.`, fence, fence)
	return b.String(), nil
}

func validationTypeList() string {
	names := make([]string, len(domain.ValidationTypes))
	for i, t := range domain.ValidationTypes {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}
