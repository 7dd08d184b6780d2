// Package record flattens Singer records to match a flattened schema.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// MaxDepth bounds record nesting
const MaxDepth = 64

// ErrTooDeep is returned when a record nests deeper than MaxDepth
var ErrTooDeep = errors.New("record nesting too deep")

// Flatten reduces a nested record to one level. Nested keys are joined with
// delimiter and arrays are stored as their JSON text.
func Flatten(rec map[string]any, delimiter string) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	if err := flattenInto(out, rec, "", delimiter, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out, rec map[string]any, parent, delimiter string, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %q exceeds %d levels", ErrTooDeep, parent, MaxDepth)
	}

	// sorted so that colliding keys resolve the same way on every run
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if parent != "" {
			key = parent + delimiter + k
		}

		switch v := rec[k].(type) {
		case map[string]any:
			if err := flattenInto(out, v, key, delimiter, depth+1); err != nil {
				return err
			}
		case []any:
			text, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to stringify %q: %w", key, err)
			}
			out[key] = string(text)
		default:
			out[key] = v
		}
	}

	return nil
}
