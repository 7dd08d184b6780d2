package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/maxpert/s3avro/schema"
)

// ErrUnencodable is returned when a value fits none of its field's types
var ErrUnencodable = errors.New("value does not fit field type")

// Shape builds the datum for one flattened record. Every schema field is
// present in the result. A field is read from its alias, which holds the
// record's original key, before its own name.
func Shape(fields []schema.Field, flat map[string]any) (map[string]any, error) {
	datum := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := lookup(f, flat)
		if !ok || v == nil {
			datum[f.Name] = nil
			continue
		}

		coerced, err := coerce(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		datum[f.Name] = coerced
	}
	return datum, nil
}

func lookup(f schema.Field, flat map[string]any) (any, bool) {
	if f.Alias != "" {
		if v, ok := flat[f.Alias]; ok {
			return v, true
		}
	}
	v, ok := flat[f.Name]
	return v, ok
}

// coerce converts v into the Go type the first matching union branch encodes
func coerce(v any, types []string) (any, error) {
	concrete := 0
	for _, t := range types {
		if t == schema.AvroNull {
			continue
		}
		concrete++
		if out, ok := convert(v, t); ok {
			return out, nil
		}
	}

	// a null-only field has nowhere to put a value
	if concrete == 0 {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %T %v into %v", ErrUnencodable, v, v, types)
}

func convert(v any, avroType string) (any, bool) {
	if n, ok := asNumber(v); ok {
		return convertNumber(n, avroType)
	}

	switch val := v.(type) {
	case bool:
		switch avroType {
		case schema.AvroBoolean:
			return val, true
		case schema.AvroString:
			return strconv.FormatBool(val), true
		}
	case string:
		switch avroType {
		case schema.AvroString:
			return val, true
		case schema.AvroBytes:
			return []byte(val), true
		}
	case map[string]any, []any:
		if avroType == schema.AvroString {
			text, err := json.Marshal(val)
			if err != nil {
				return nil, false
			}
			return string(text), true
		}
	}
	return nil, false
}

func convertNumber(n json.Number, avroType string) (any, bool) {
	switch avroType {
	case schema.AvroInt:
		i, err := n.Int64()
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return int(i), true
	case schema.AvroLong:
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		return i, true
	case schema.AvroDouble:
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case schema.AvroFloat:
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return float32(f), true
	case schema.AvroString:
		return n.String(), true
	}
	return nil, false
}

// asNumber normalizes the numeric types a record can carry
func asNumber(v any) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case int:
		return json.Number(strconv.Itoa(n)), true
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), true
	case float32:
		return json.Number(strconv.FormatFloat(float64(n), 'g', -1, 32)), true
	case float64:
		return json.Number(strconv.FormatFloat(n, 'g', -1, 64)), true
	}
	return "", false
}
