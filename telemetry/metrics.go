package telemetry

// Histogram bucket definitions
var (
	// UploadBuckets for object store uploads
	UploadBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

	// RunBuckets for whole runs
	RunBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600}
)

// Input Metrics
var (
	// MessagesTotal counts input messages by type (SCHEMA, RECORD, STATE, ACTIVATE_VERSION)
	MessagesTotal CounterVec = noopCounterVec{}

	// RecordsWrittenTotal counts records appended to container files by stream
	RecordsWrittenTotal CounterVec = noopCounterVec{}

	// RecordsFilteredTotal counts records dropped by the stream filter
	RecordsFilteredTotal CounterVec = noopCounterVec{}

	// SchemasTotal counts schema announcements by cache result (hit, miss)
	SchemasTotal CounterVec = noopCounterVec{}
)

// Publication Metrics
var (
	// UploadsTotal counts object uploads by kind (data, schema) and result (success, failed)
	UploadsTotal CounterVec = noopCounterVec{}

	// UploadDurationSeconds measures upload latency by kind
	UploadDurationSeconds HistogramVec = noopHistogramVec{}

	// NotificationsTotal counts publication notifications by sink and result
	NotificationsTotal CounterVec = noopCounterVec{}
)

// Run Metrics
var (
	// RunDurationSeconds measures the whole run
	RunDurationSeconds Histogram = NoopStat{}

	// LastSuccessTimestamp is the unix time of the last successful run
	LastSuccessTimestamp Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	MessagesTotal = NewCounterVec(
		"messages_total",
		"Input messages by type",
		[]string{"type"},
	)
	RecordsWrittenTotal = NewCounterVec(
		"records_written_total",
		"Records written to container files by stream",
		[]string{"stream"},
	)
	RecordsFilteredTotal = NewCounterVec(
		"records_filtered_total",
		"Records dropped by the stream filter",
		[]string{"stream"},
	)
	SchemasTotal = NewCounterVec(
		"schemas_total",
		"Schema announcements by compile cache result",
		[]string{"cache"},
	)

	UploadsTotal = NewCounterVec(
		"uploads_total",
		"Object uploads by kind and result",
		[]string{"kind", "result"},
	)
	UploadDurationSeconds = NewHistogramVec(
		"upload_duration_seconds",
		"Object upload duration in seconds",
		[]string{"kind"},
		UploadBuckets,
	)
	NotificationsTotal = NewCounterVec(
		"notifications_total",
		"Publication notifications by sink and result",
		[]string{"sink", "result"},
	)

	RunDurationSeconds = NewHistogramWithBuckets(
		"run_duration_seconds",
		"Run duration in seconds",
		RunBuckets,
	)
	LastSuccessTimestamp = NewGauge(
		"last_success_timestamp_seconds",
		"Unix time of the last successful run",
	)
}
