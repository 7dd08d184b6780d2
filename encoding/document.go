// Package encoding writes flattened records as Avro object container files.
//
// A stream's Document is written twice: as the pretty-printed .avsc sidecar,
// which keeps every field default, and as the container's writer schema, which
// drops defaults Avro readers would reject.
package encoding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hamba/avro/v2"
	"github.com/maxpert/s3avro/schema"
)

// ErrDuplicateField is returned when two flattened fields share a name
var ErrDuplicateField = errors.New("duplicate field name")

// Document is the Avro record schema for one stream
type Document struct {
	Namespace string         `json:"namespace"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Fields    []schema.Field `json:"fields"`
}

// NewDocument builds the record schema for stream
func NewDocument(stream string, fields []schema.Field) (Document, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Name]; ok {
			return Document{}, fmt.Errorf("%w: %q in stream %q", ErrDuplicateField, f.Name, stream)
		}
		seen[f.Name] = struct{}{}
	}

	name := schema.SanitizeName(stream)
	return Document{
		Namespace: name + ".avro",
		Type:      "record",
		Name:      name,
		Fields:    fields,
	}, nil
}

// Sidecar renders the document with two-space indentation
func (d Document) Sidecar() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSidecar truncates path and writes the sidecar into it
func (d Document) WriteSidecar(path string) error {
	data, err := d.Sidecar()
	if err != nil {
		return fmt.Errorf("failed to render schema %s: %w", d.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema %s: %w", path, err)
	}
	return nil
}

// WriterSchema returns the schema data is encoded with. A union default has
// to match the union's first branch, which is always null here, so other
// defaults are left out.
func (d Document) WriterSchema() (avro.Schema, error) {
	fields := make([]schema.Field, len(d.Fields))
	for i, f := range d.Fields {
		f.Default = nil
		fields[i] = f
	}
	writer := d
	writer.Fields = fields

	raw, err := json.Marshal(writer)
	if err != nil {
		return nil, err
	}

	parsed, err := avro.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse avro schema for %s: %w", d.Name, err)
	}
	return parsed, nil
}
