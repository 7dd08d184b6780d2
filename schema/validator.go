package schema

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrValidation is returned when a record does not satisfy its stream schema
var ErrValidation = errors.New("record failed schema validation")

// ErrInvalidSchema is returned when a schema cannot be compiled
var ErrInvalidSchema = errors.New("invalid schema")

const schemaResource = "stream-schema.json"

// Validator checks records against a Draft 4 JSON schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles a raw JSON schema
func NewValidator(raw []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	normalizeForValidation(doc, 0)

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft4)
	if err := compiler.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	return &Validator{schema: compiled}, nil
}

// Validate checks a decoded record. Numbers should be json.Number.
func (v *Validator) Validate(record any) error {
	if err := v.schema.Validate(record); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// normalizeForValidation rewrites the "dict" type some taps emit to "object"
// so the schema compiles, and drops "format" keywords. Formats are not
// asserted: date-time values are parsed leniently when the record is coerced.
func normalizeForValidation(node any, depth int) {
	if depth > MaxDepth*4 {
		return
	}

	switch n := node.(type) {
	case map[string]any:
		// a property named "format" is an object, only the keyword is a string
		if _, ok := n["format"].(string); ok {
			delete(n, "format")
		}
		switch t := n["type"].(type) {
		case string:
			if t == TypeDict {
				n["type"] = TypeObject
			}
		case []any:
			for i, item := range t {
				if s, ok := item.(string); ok && s == TypeDict {
					t[i] = TypeObject
				}
			}
		}
		for _, child := range n {
			normalizeForValidation(child, depth+1)
		}
	case []any:
		for _, child := range n {
			normalizeForValidation(child, depth+1)
		}
	}
}
