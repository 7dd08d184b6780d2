// Package transformer provides implementations of the publisher.Transformer interface
// for rendering publication manifests in sink-specific formats.
package transformer

import (
	"encoding/json"
	"fmt"

	"github.com/maxpert/s3avro/publisher"
)

func init() {
	publisher.RegisterTransformer("manifest", func() publisher.Transformer {
		return NewManifestTransformer()
	})
}

// ManifestTransformer renders a manifest as plain JSON
type ManifestTransformer struct{}

// NewManifestTransformer creates a new manifest transformer
func NewManifestTransformer() *ManifestTransformer {
	return &ManifestTransformer{}
}

// Transform converts a manifest to JSON
func (m *ManifestTransformer) Transform(manifest publisher.Manifest) ([]byte, error) {
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
