package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldSpec is the canonical form of one output-schema entry. Clients may send
// either a bare type name ("email") or an object ({"type":"email","required":false}).
type FieldSpec struct {
	Type        ValidationType `json:"type"`
	Required    bool           `json:"required"`
	Description string         `json:"description,omitempty"`
	Examples    []string       `json:"examples,omitempty"`
	Detailed    bool           `json:"-"`
	RawType     string         `json:"-"`
}

type detailedFieldSpec struct {
	Type        string   `json:"type"`
	Required    *bool    `json:"required"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// UnmarshalJSON resolves either variant into the canonical form. Unknown type
// names are kept in RawType and rejected later by OutputSchema.Validate.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidFieldSpec)
	}
	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFieldSpec, err)
		}
		*f = simpleField(name)
		return nil
	case '{':
		var d detailedFieldSpec
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFieldSpec, err)
		}
		spec := simpleField(d.Type)
		spec.Detailed = true
		if d.Required != nil {
			spec.Required = *d.Required
		}
		spec.Description = d.Description
		spec.Examples = d.Examples
		*f = spec
		return nil
	default:
		return fmt.Errorf("%w: expected a type name or an object", ErrInvalidFieldSpec)
	}
}

func simpleField(name string) FieldSpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	t, _ := ParseValidationType(normalized)
	return FieldSpec{Type: t, Required: true, RawType: name}
}

// OutputSchema is the requested output shape. Field order follows the request body.
type OutputSchema struct {
	keys   []string
	fields map[string]FieldSpec
}

// NewOutputSchema builds a schema from bare type names, in sorted key order.
func NewOutputSchema(types map[string]string) OutputSchema {
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := OutputSchema{fields: make(map[string]FieldSpec, len(types))}
	for _, k := range keys {
		s.Set(k, simpleField(types[k]))
	}
	return s
}

// Set adds or replaces a field, keeping first-insertion order.
func (s *OutputSchema) Set(key string, spec FieldSpec) {
	if s.fields == nil {
		s.fields = map[string]FieldSpec{}
	}
	if _, exists := s.fields[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.fields[key] = spec
}

// Keys returns field names in request order.
func (s OutputSchema) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Field returns the FieldSpec for key.
func (s OutputSchema) Field(key string) (FieldSpec, bool) {
	f, ok := s.fields[key]
	return f, ok
}

// Len returns the number of fields.
func (s OutputSchema) Len() int { return len(s.keys) }

// Has reports whether key is part of the schema.
func (s OutputSchema) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Validate checks that every field resolved to a supported type.
func (s OutputSchema) Validate() error {
	for _, k := range s.keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidFieldSpec)
		}
		f := s.fields[k]
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unsupported type %q", ErrInvalidFieldSpec, k, f.RawType)
		}
	}
	return nil
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (s *OutputSchema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFieldSpec, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: output schema must be an object", ErrInvalidFieldSpec)
	}
	out := OutputSchema{fields: map[string]FieldSpec{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFieldSpec, err)
		}
		key, _ := keyTok.(string)
		var spec FieldSpec
		if err := dec.Decode(&spec); err != nil {
			return err
		}
		out.Set(key, spec)
	}
	*s = out
	return nil
}

// MarshalJSON encodes the schema as an object in request order.
func (s OutputSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(s.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
