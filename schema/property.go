// Package schema flattens Singer JSON schemas into Avro field lists and
// validates records against the original JSON schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Property is one node of a JSON schema as Singer taps emit it
type Property struct {
	Type       TypeList   `json:"type"`
	Format     string     `json:"format"`
	Inclusion  string     `json:"inclusion"`
	Selected   *Selected  `json:"selected"`
	AnyOf      []Property `json:"anyOf"`
	Properties Properties `json:"properties"`
}

// TypeList is the "type" keyword: a single name or a list of names.
// nil means the keyword was absent.
type TypeList []string

// UnmarshalJSON implements json.Unmarshaler
func (t *TypeList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TypeList{s}
		return nil
	}

	list := make([]string, 0, 2)
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("type must be a string or a list of strings: %w", err)
	}
	*t = list
	return nil
}

// Selected is the catalog selection flag; both true and "true" select
type Selected bool

// IsSelected reports whether the property carries a true selection flag
func (p Property) IsSelected() bool {
	return p.Selected != nil && bool(*p.Selected)
}

// HasSelectionMarker reports whether the property carries either catalog marker
func (p Property) HasSelectionMarker() bool {
	return p.Selected != nil || p.Inclusion != ""
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Selected) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case bool:
		*s = Selected(val)
	case string:
		*s = val == "true"
	default:
		*s = false
	}
	return nil
}

// NamedProperty pairs a property with its key
type NamedProperty struct {
	Name     string
	Property Property
}

// Properties keeps object properties in document order
type Properties []NamedProperty

// Get returns the property with the given key
func (p Properties) Get(name string) (Property, bool) {
	for _, np := range p {
		if np.Name == name {
			return np.Property, true
		}
	}
	return Property{}, false
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be an object")
	}

	out := make(Properties, 0, 8)
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in properties", keyTok)
		}

		var prop Property
		if err := dec.Decode(&prop); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}

		// A repeated key keeps its first position and its last value
		if i, seen := index[key]; seen {
			out[i].Property = prop
			continue
		}
		index[key] = len(out)
		out = append(out, NamedProperty{Name: key, Property: prop})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}
