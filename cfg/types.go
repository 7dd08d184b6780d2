package cfg

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Toggle is a boolean that also accepts "true"/"false" strings. Singer
// configs carry both forms.
type Toggle bool

// UnmarshalJSON implements json.Unmarshaler
func (t *Toggle) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return t.set(v)
}

// UnmarshalTOML implements toml.Unmarshaler
func (t *Toggle) UnmarshalTOML(v any) error {
	return t.set(v)
}

func (t *Toggle) set(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		*t = Toggle(val)
		return nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", val)
		}
		*t = Toggle(b)
		return nil
	default:
		return fmt.Errorf("invalid boolean %v", v)
	}
}

// Verify holds the TLS verification setting: a boolean, or a CA bundle path
type Verify struct {
	Disabled bool
	CABundle string
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Verify) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return v.set(raw)
}

// UnmarshalTOML implements toml.Unmarshaler
func (v *Verify) UnmarshalTOML(raw any) error {
	return v.set(raw)
}

func (v *Verify) set(raw any) error {
	switch val := raw.(type) {
	case nil:
		*v = Verify{}
	case bool:
		*v = Verify{Disabled: !val}
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			*v = Verify{Disabled: !b}
			return nil
		}
		*v = Verify{CABundle: val}
	default:
		return fmt.Errorf("invalid verify value %v", raw)
	}
	return nil
}
