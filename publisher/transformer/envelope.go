package transformer

import (
	"encoding/json"
	"fmt"

	"github.com/maxpert/s3avro/publisher"
)

func init() {
	publisher.RegisterTransformer("envelope", func() publisher.Transformer {
		return NewEnvelopeTransformer()
	})
}

// EnvelopeTransformer renders manifests as Kafka Connect JSON with an
// embedded schema, so JSON converters with schemas enabled can read them.
//
// Output format:
//   - schema: struct schema describing the payload fields
//   - payload: the manifest, with published_at as epoch milliseconds
type EnvelopeTransformer struct {
	schema *envelopeSchema
}

// NewEnvelopeTransformer creates a new envelope transformer
func NewEnvelopeTransformer() *EnvelopeTransformer {
	return &EnvelopeTransformer{schema: buildEnvelopeSchema()}
}

type envelopeSchema struct {
	Type   string                `json:"type"`
	Name   string                `json:"name"`
	Fields []envelopeSchemaField `json:"fields"`
}

type envelopeSchemaField struct {
	Field    string `json:"field"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
	Name     string `json:"name,omitempty"`
}

type envelopePayload struct {
	RunID        string `json:"run_id"`
	Stream       string `json:"stream"`
	Records      int64  `json:"records"`
	DataURI      string `json:"data_uri"`
	SchemaURI    string `json:"schema_uri"`
	DataChecksum string `json:"data_checksum"`
	Codec        string `json:"codec"`
	PublishedAt  int64  `json:"published_at"`
}

type envelopeMessage struct {
	Schema  *envelopeSchema `json:"schema"`
	Payload envelopePayload `json:"payload"`
}

// Transform converts a manifest to an envelope
func (e *EnvelopeTransformer) Transform(m publisher.Manifest) ([]byte, error) {
	msg := envelopeMessage{
		Schema: e.schema,
		Payload: envelopePayload{
			RunID:        m.RunID,
			Stream:       m.Stream,
			Records:      m.Records,
			DataURI:      m.DataURI,
			SchemaURI:    m.SchemaURI,
			DataChecksum: m.DataChecksum,
			Codec:        m.Codec,
			PublishedAt:  m.PublishedAt.UnixMilli(),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

func buildEnvelopeSchema() *envelopeSchema {
	return &envelopeSchema{
		Type: "struct",
		Name: "io.s3avro.Manifest",
		Fields: []envelopeSchemaField{
			{Field: "run_id", Type: "string"},
			{Field: "stream", Type: "string"},
			{Field: "records", Type: "int64"},
			{Field: "data_uri", Type: "string"},
			{Field: "schema_uri", Type: "string"},
			{Field: "data_checksum", Type: "string"},
			{Field: "codec", Type: "string"},
			{Field: "published_at", Type: "int64", Name: "org.apache.kafka.connect.data.Timestamp"},
		},
	}
}
