package publisher

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/maxpert/s3avro/cfg"
)

func init() {
	// Registered here to avoid an import cycle with the sink and transformer packages
	RegisterSink("fake", func(config cfg.NotificationConfiguration) (Sink, error) {
		if config.Topic == "broken" {
			return nil, errors.New("sink unavailable")
		}
		return &fakeSink{}, nil
	})

	RegisterTransformer("fake", func() Transformer {
		return &fakeTransformer{}
	})

	RegisterStore("fake", func(config *cfg.Configuration) (Store, error) {
		return newFakeStore(), nil
	})
}

// fakeStore keeps uploads in memory and can fail on demand
type fakeStore struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	meta     map[string]map[string]string
	failKeys map[string]int // key -> remaining failures
	calls    int
	checkErr error
}

func newFakeStore(buckets ...string) *fakeStore {
	s := &fakeStore{
		buckets:  make(map[string]bool),
		objects:  make(map[string][]byte),
		meta:     make(map[string]map[string]string),
		failKeys: make(map[string]int),
	}
	for _, b := range buckets {
		s.buckets[b] = true
	}
	return s
}

func (s *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.buckets[bucket], nil
}

func (s *fakeStore) Upload(ctx context.Context, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if n := s.failKeys[obj.Key]; n != 0 {
		if n > 0 {
			s.failKeys[obj.Key] = n - 1
		}
		return errors.New("upload refused")
	}

	data, err := os.ReadFile(obj.Path)
	if err != nil {
		return err
	}
	s.objects[obj.Bucket+"/"+obj.Key] = data
	s.meta[obj.Bucket+"/"+obj.Key] = obj.Metadata
	return nil
}

func (s *fakeStore) URI(bucket, key string) string {
	return "fake://" + bucket + "/" + key
}

func (s *fakeStore) Close() error {
	return nil
}

// fakeSink records published messages
type fakeSink struct {
	mu       sync.Mutex
	messages []fakeMessage
	failures int
	closed   bool
}

type fakeMessage struct {
	topic string
	key   string
	value []byte
}

func (f *fakeSink) Publish(topic, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return errors.New("broker down")
	}
	f.messages = append(f.messages, fakeMessage{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

type fakeTransformer struct{}

func (f *fakeTransformer) Transform(m Manifest) ([]byte, error) {
	return []byte(m.Stream + ":" + m.DataURI), nil
}
