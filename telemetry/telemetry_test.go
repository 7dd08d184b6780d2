package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/maxpert/s3avro/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreNoopWithoutPushgateway(t *testing.T) {
	reset()
	original := cfg.Config.Prometheus
	defer func() { cfg.Config.Prometheus = original }()
	cfg.Config.Prometheus.PushgatewayURL = ""

	InitializeTelemetry()
	InitMetrics()

	assert.False(t, Enabled())
	assert.IsType(t, noopCounterVec{}, MessagesTotal)
	assert.IsType(t, NoopStat{}, RunDurationSeconds)

	// no-ops never panic
	MessagesTotal.With("RECORD").Inc()
	UploadDurationSeconds.With("data").Observe(1)
	LastSuccessTimestamp.SetToCurrentTime()

	require.NoError(t, Push(context.Background()))
}

func TestPushSendsMetrics(t *testing.T) {
	var mu sync.Mutex
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	original := cfg.Config.Prometheus
	defer func() {
		cfg.Config.Prometheus = original
		reset()
		InitMetrics()
	}()
	cfg.Config.Prometheus.PushgatewayURL = srv.URL
	cfg.Config.Prometheus.Job = "s3avro_test"

	reset()
	InitializeTelemetry()
	InitMetrics()
	require.True(t, Enabled())

	MessagesTotal.With("RECORD").Add(3)
	RecordsWrittenTotal.With("users").Inc()

	require.NoError(t, Push(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(path, "/metrics/job/s3avro_test/instance/"), path)
	assert.NotEmpty(t, body)
}

func TestInstanceIDIsStable(t *testing.T) {
	assert.NotEmpty(t, InstanceID())
	assert.Equal(t, InstanceID(), InstanceID())
}
