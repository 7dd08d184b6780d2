package publisher

import (
	"context"
	"time"
)

// Object is one local file to be stored under Bucket/Key
type Object struct {
	Bucket      string
	Key         string
	Path        string
	ContentType string
	Metadata    map[string]string
}

// Store is the durable blob store finished artifacts are relayed to
type Store interface {
	// BucketExists reports whether the bucket can be written to
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// Upload stores the object's file
	Upload(ctx context.Context, obj Object) error
	// URI renders the address of a stored object
	URI(bucket, key string) string
	// Close releases any resources held by the store
	Close() error
}

// Sink represents a destination for publication notices (e.g., Kafka, NATS)
type Sink interface {
	// Publish sends a message to the sink
	Publish(topic string, key string, value []byte) error
	// Close releases any resources held by the sink
	Close() error
}

// Transformer converts manifests to sink-specific formats
type Transformer interface {
	// Transform converts a manifest to bytes for publishing
	Transform(m Manifest) ([]byte, error)
}

// Filter determines whether a stream's files are written and published
type Filter interface {
	// Match returns true if the stream should be published
	Match(stream string) bool
}

// Manifest describes one stream published by a run
type Manifest struct {
	RunID        string    `json:"run_id"`
	Stream       string    `json:"stream"`
	Records      int64     `json:"records"`
	DataURI      string    `json:"data_uri"`
	SchemaURI    string    `json:"schema_uri"`
	DataChecksum string    `json:"data_checksum"`
	Codec        string    `json:"codec"`
	PublishedAt  time.Time `json:"published_at"`
}

// Result is the outcome of publishing one stream
type Result struct {
	Stream   string
	Manifest Manifest
	Err      error
}

// Summary collects the results of a publication pass
type Summary struct {
	Results []Result
}

// Published returns the number of streams published successfully
func (s Summary) Published() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of streams that could not be published
func (s Summary) Failed() int {
	return len(s.Results) - s.Published()
}
