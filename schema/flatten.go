package schema

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxDepth bounds object nesting for both schemas and records
const MaxDepth = 64

// ErrTooDeep is returned when nesting exceeds MaxDepth
var ErrTooDeep = errors.New("nesting too deep")

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Field is one flattened Avro field
type Field struct {
	Name    string   `json:"name"`
	Type    []string `json:"type"`
	Default any      `json:"default"`
	Alias   string   `json:"alias,omitempty"`
}

// Has reports whether avroType is one of the field's types
func (f Field) Has(avroType string) bool {
	for _, t := range f.Type {
		if t == avroType {
			return true
		}
	}
	return false
}

// Flattened is the result of flattening a schema's properties
type Flattened struct {
	Fields     []Field
	DateFields []string
}

type flattener struct {
	delimiter string
	selective bool
	fields    []Field
	dates     []string
}

// Flatten reduces nested properties to a flat Avro field list. Nested keys
// are joined with delimiter. Fields are emitted depth first, with an object's
// own placeholder field after its children.
func Flatten(props Properties, delimiter string) (Flattened, error) {
	f := &flattener{
		delimiter: delimiter,
		selective: usesSelection(props),
		fields:    make([]Field, 0, len(props)),
		dates:     make([]string, 0),
	}

	if err := f.walk(props, "", 0); err != nil {
		return Flattened{}, err
	}

	return Flattened{Fields: f.fields, DateFields: f.dates}, nil
}

// usesSelection reports whether any top level property carries catalog
// metadata. Schemas without it are taken whole.
func usesSelection(props Properties) bool {
	for _, np := range props {
		if np.Property.HasSelectionMarker() {
			return true
		}
	}
	return false
}

func (f *flattener) included(p Property, parent string) bool {
	if p.Inclusion == InclusionUnsupported {
		return false
	}
	if !f.selective || parent != "" {
		return true
	}
	return p.IsSelected() || p.Inclusion == InclusionAutomatic
}

func (f *flattener) walk(props Properties, parent string, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %q exceeds %d levels", ErrTooDeep, parent, MaxDepth)
	}

	for _, np := range props {
		k, v := np.Name, np.Property
		if !f.included(v, parent) {
			continue
		}

		key := k
		if parent != "" {
			key = parent + f.delimiter + k
		}

		types := []string(v.Type)
		format := v.Format
		// legacy anyOf unions are carried as strings
		if v.Type == nil && len(v.AnyOf) > 0 {
			for _, branch := range v.AnyOf {
				if branch.Format == FormatDateTime {
					format = FormatDateTime
				}
			}
			types = []string{TypeNull, TypeString}
		}

		field := Field{Name: key, Type: []string{AvroNull}}
		structural := false

		for _, t := range types {
			switch {
			case t == TypeObject || t == TypeDict:
				if err := f.walk(v.Properties, key, depth+1); err != nil {
					return err
				}
				structural = true
			case t == TypeArray:
				field.Type = append(field.Type, AvroString)
				field.Default = nil
			case t == TypeString && format == FormatDateTime:
				f.dates = append(f.dates, key)
				field.Type = append(field.Type, AvroLong)
				field.Default = 0
			case t == TypeNull:
			default:
				avroType, def := mapPrimitive(t)
				field.Type = append(field.Type, avroType)
				field.Default = def
			}
		}

		if structural {
			field.Type = []string{AvroNull, AvroString}
			field.Default = nil
		}

		if invalidNameChars.MatchString(k) {
			field.Name = SanitizeName(k)
			field.Alias = key
		} else if name := SanitizeName(key); name != key {
			// valid key, but the delimiter or a leading digit is not a legal name
			field.Name = name
			field.Alias = key
		}

		f.fields = append(f.fields, field)
	}

	return nil
}

// SanitizeName replaces characters Avro names cannot hold with '_' and
// prefixes names that would start with a digit.
func SanitizeName(s string) string {
	name := invalidNameChars.ReplaceAllString(s, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}
