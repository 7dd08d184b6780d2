package store

import (
	"testing"

	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/publisher"
	"github.com/stretchr/testify/assert"
)

func TestNewNatsStoreUnreachable(t *testing.T) {
	_, err := NewNatsStore("nats://127.0.0.1:1")
	assert.Error(t, err)
}

func TestNatsStoreFactoryRequiresURL(t *testing.T) {
	config := cfg.Default()
	config.Store = cfg.StoreNATS

	_, err := publisher.NewStore(config)
	assert.Error(t, err)
}

func TestNatsStoreURI(t *testing.T) {
	assert.Equal(t, "nats://lake/raw/a.avro", (&NatsStore{}).URI("lake", "raw/a.avro"))
}

func TestStoresImplementInterface(t *testing.T) {
	var _ publisher.Store = (*S3Store)(nil)
	var _ publisher.Store = (*NatsStore)(nil)
	var _ publisher.Store = (*MemoryStore)(nil)
}
