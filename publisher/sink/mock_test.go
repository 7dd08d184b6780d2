package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/publisher"
	_ "github.com/maxpert/s3avro/publisher/transformer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mockOnce  sync.Once
	mockSinks = make(map[string]*MockSink)
	mockMu    sync.Mutex
)

func registerMock() {
	mockOnce.Do(func() {
		publisher.RegisterSink("mock", func(config cfg.NotificationConfiguration) (publisher.Sink, error) {
			mockMu.Lock()
			defer mockMu.Unlock()
			m := &MockSink{}
			mockSinks[config.Name] = m
			return m, nil
		})
	})
}

func TestNotifierDeliversManifestToSink(t *testing.T) {
	registerMock()

	n, err := publisher.NewNotifier([]cfg.NotificationConfiguration{
		{Name: "audit", Type: "mock", Topic: "s3avro.published", Format: "manifest"},
	}, publisher.Backoff{MaxAttempts: 1})
	require.NoError(t, err)

	published := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	n.Notify(context.Background(), publisher.Manifest{
		RunID:       "run-1",
		Stream:      "users",
		Records:     3,
		DataURI:     "s3://lake/users.avro",
		SchemaURI:   "s3://lake/users.avsc",
		Codec:       "null",
		PublishedAt: published,
	})
	n.Close()

	mockMu.Lock()
	mock := mockSinks["audit"]
	mockMu.Unlock()
	require.NotNil(t, mock)
	assert.True(t, mock.Closed)

	msgs := mock.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "s3avro.published", msgs[0].Topic)
	assert.Equal(t, "users", msgs[0].Key)

	var got publisher.Manifest
	require.NoError(t, msgs[0].Decode(&got))
	assert.Equal(t, "s3://lake/users.avro", got.DataURI)
	assert.Equal(t, int64(3), got.Records)
	assert.True(t, published.Equal(got.PublishedAt))
}

func TestNotifierSurvivesSinkErrors(t *testing.T) {
	registerMock()

	n, err := publisher.NewNotifier([]cfg.NotificationConfiguration{
		{Name: "flaky", Type: "mock", Topic: "t", Format: "envelope"},
	}, publisher.Backoff{MaxAttempts: 2, Initial: time.Millisecond})
	require.NoError(t, err)
	defer n.Close()

	mockMu.Lock()
	mock := mockSinks["flaky"]
	mockMu.Unlock()
	mock.PublishErr = assert.AnError

	n.Notify(context.Background(), publisher.Manifest{Stream: "users"})
	assert.Empty(t, mock.Snapshot())

	mock.PublishErr = nil
	mock.Reset()
	n.Notify(context.Background(), publisher.Manifest{Stream: "users"})
	assert.Len(t, mock.Snapshot(), 1)
}
