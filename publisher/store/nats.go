package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/publisher"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func init() {
	publisher.RegisterStore(cfg.StoreNATS, func(config *cfg.Configuration) (publisher.Store, error) {
		if config.NatsURL == "" {
			return nil, fmt.Errorf("nats store requires nats_url")
		}
		return NewNatsStore(config.NatsURL)
	})
}

// NatsStore keeps objects in JetStream object store buckets
type NatsStore struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	buckets map[string]jetstream.ObjectStore
}

// NewNatsStore connects to NATS and opens a JetStream context
func NewNatsStore(url string) (*NatsStore, error) {
	nc, err := nats.Connect(url,
		nats.Name("s3avro-store"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NatsStore{nc: nc, js: js, buckets: make(map[string]jetstream.ObjectStore)}, nil
}

func (n *NatsStore) bucket(ctx context.Context, name string) (jetstream.ObjectStore, error) {
	if obs, ok := n.buckets[name]; ok {
		return obs, nil
	}
	obs, err := n.js.ObjectStore(ctx, name)
	if err != nil {
		return nil, err
	}
	n.buckets[name] = obs
	return obs, nil
}

// BucketExists reports whether the object store bucket has been created
func (n *NatsStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := n.bucket(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upload puts the object's file under its key
func (n *NatsStore) Upload(ctx context.Context, obj publisher.Object) error {
	obs, err := n.bucket(ctx, obj.Bucket)
	if err != nil {
		return fmt.Errorf("failed to open object store %s: %w", obj.Bucket, err)
	}

	f, err := os.Open(obj.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", obj.Path, err)
	}
	defer f.Close()

	meta := jetstream.ObjectMeta{
		Name:     obj.Key,
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		meta.Headers = nats.Header{"Content-Type": []string{obj.ContentType}}
	}

	if _, err := obs.Put(ctx, meta, f); err != nil {
		return err
	}
	return nil
}

// URI renders nats://bucket/key
func (n *NatsStore) URI(bucket, key string) string {
	return "nats://" + bucket + "/" + key
}

// Close drains nothing; uploads are synchronous
func (n *NatsStore) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
