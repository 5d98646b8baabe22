package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	govalidator "github.com/go-playground/validator/v10"

	"parserator/internal/domain"
)

var (
	validate     = govalidator.New()
	phonePattern = regexp.MustCompile(`[\d\-\+\(\)\s]{7,}`)
)

func builtinCheckers() []TypeChecker {
	return []TypeChecker{
		stringChecker{},
		tagChecker{typ: domain.ValidationEmail, tag: "email", label: "email address"},
		numberChecker{},
		tagChecker{typ: domain.ValidationISODate, tag: "datetime=2006-01-02", label: "ISO date (YYYY-MM-DD)"},
		stringArrayChecker{},
		booleanChecker{},
		tagChecker{typ: domain.ValidationURL, tag: "http_url", label: "absolute http(s) URL"},
		phoneChecker{},
		objectChecker{},
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

type stringChecker struct{}

func (stringChecker) Type() domain.ValidationType { return domain.ValidationString }

func (stringChecker) Check(v interface{}) (interface{}, bool, string) {
	if s, ok := v.(string); ok {
		return s, true, ""
	}
	return v, false, "expected string, got " + typeName(v)
}

// tagChecker validates strings with a go-playground validator tag.
type tagChecker struct {
	typ   domain.ValidationType
	tag   string
	label string
}

func (c tagChecker) Type() domain.ValidationType { return c.typ }

func (c tagChecker) Check(v interface{}) (interface{}, bool, string) {
	s, ok := v.(string)
	if !ok {
		return v, false, fmt.Sprintf("expected %s string, got %s", c.label, typeName(v))
	}
	s = strings.TrimSpace(s)
	if err := validate.Var(s, c.tag); err != nil {
		return v, false, "not a valid " + c.label
	}
	return s, true, ""
}

type numberChecker struct{}

func (numberChecker) Type() domain.ValidationType { return domain.ValidationNumber }

func (numberChecker) Check(v interface{}) (interface{}, bool, string) {
	switch n := v.(type) {
	case float64:
		return n, true, ""
	case float32:
		return float64(n), true, ""
	case int:
		return float64(n), true, ""
	case int64:
		return float64(n), true, ""
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return v, false, "not a valid number"
		}
		return f, true, ""
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return v, false, "not a numeric string"
		}
		return f, true, ""
	default:
		return v, false, "expected number, got " + typeName(v)
	}
}

type stringArrayChecker struct{}

func (stringArrayChecker) Type() domain.ValidationType { return domain.ValidationStringArray }

func (stringArrayChecker) Check(v interface{}) (interface{}, bool, string) {
	switch arr := v.(type) {
	case []string:
		return arr, true, ""
	case []interface{}:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return v, false, "expected array of strings"
			}
			out = append(out, s)
		}
		return out, true, ""
	default:
		return v, false, "expected array, got " + typeName(v)
	}
}

type booleanChecker struct{}

func (booleanChecker) Type() domain.ValidationType { return domain.ValidationBoolean }

func (booleanChecker) Check(v interface{}) (interface{}, bool, string) {
	switch b := v.(type) {
	case bool:
		return b, true, ""
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true, ""
		case "false":
			return false, true, ""
		}
		return v, false, "not a boolean string"
	default:
		return v, false, "expected boolean, got " + typeName(v)
	}
}

type phoneChecker struct{}

func (phoneChecker) Type() domain.ValidationType { return domain.ValidationPhone }

func (phoneChecker) Check(v interface{}) (interface{}, bool, string) {
	s, ok := v.(string)
	if !ok {
		return v, false, "expected phone string, got " + typeName(v)
	}
	if !phonePattern.MatchString(s) {
		return v, false, "not a valid phone number"
	}
	return s, true, ""
}

type objectChecker struct{}

func (objectChecker) Type() domain.ValidationType { return domain.ValidationJSONObject }

func (objectChecker) Check(v interface{}) (interface{}, bool, string) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, true, ""
	}
	return v, false, "expected object, got " + typeName(v)
}
