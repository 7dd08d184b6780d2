package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/publisher"
)

func init() {
	publisher.RegisterStore(cfg.StoreMemory, func(config *cfg.Configuration) (publisher.Store, error) {
		data, schema, err := config.Targets()
		if err != nil {
			return nil, err
		}
		return NewMemoryStore(data.Bucket, schema.Bucket), nil
	})
}

// StoredObject is an uploaded object held by a MemoryStore
type StoredObject struct {
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// MemoryStore keeps uploads in process memory. Useful for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]StoredObject
}

// NewMemoryStore creates a store with the given buckets
func NewMemoryStore(buckets ...string) *MemoryStore {
	m := &MemoryStore{buckets: make(map[string]map[string]StoredObject)}
	for _, b := range buckets {
		m.buckets[b] = make(map[string]StoredObject)
	}
	return m
}

// BucketExists reports whether the bucket was created
func (m *MemoryStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

// Upload copies the object's file into memory
func (m *MemoryStore) Upload(ctx context.Context, obj publisher.Object) error {
	body, err := os.ReadFile(obj.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", obj.Path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.buckets[obj.Bucket]
	if !ok {
		return fmt.Errorf("%w: %s", publisher.ErrBucketNotFound, obj.Bucket)
	}

	meta := make(map[string]string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		meta[k] = v
	}
	objects[obj.Key] = StoredObject{Body: body, ContentType: obj.ContentType, Metadata: meta}
	return nil
}

// Get returns a stored object
func (m *MemoryStore) Get(bucket, key string) (StoredObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys lists the keys stored in a bucket in sorted order
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// URI renders memory://bucket/key
func (m *MemoryStore) URI(bucket, key string) string {
	return "memory://" + bucket + "/" + key
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
