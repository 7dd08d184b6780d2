package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/stream"
	"github.com/maxpert/s3avro/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrBucketNotFound is returned when a target bucket does not exist
var ErrBucketNotFound = errors.New("bucket does not exist")

// Object metadata attached to every upload
const (
	MetaChecksum = "xxhash64"
	MetaStream   = "stream"
	MetaRecords  = "records"
	MetaRunID    = "run-id"
)

const (
	contentTypeAvro = "avro/binary"
	contentTypeJSON = "application/json"
)

// Config configures a Publisher
type Config struct {
	Store    Store
	Data     cfg.BucketKey
	Schema   cfg.BucketKey
	RunID    string
	Backoff  Backoff
	Notifier *Notifier
	// Now is used for manifest timestamps; defaults to time.Now
	Now func() time.Time
}

// Publisher relays finished stream artifacts to the store
type Publisher struct {
	config Config
}

// New creates a publisher
func New(config Config) (*Publisher, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.Data.Bucket == "" {
		return nil, fmt.Errorf("data bucket is required")
	}
	if config.Schema.Bucket == "" {
		config.Schema = config.Data
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	config.Backoff = config.Backoff.withDefaults()

	return &Publisher{config: config}, nil
}

// VerifyTargets checks that both target buckets exist
func (p *Publisher) VerifyTargets(ctx context.Context) error {
	buckets := []string{p.config.Data.Bucket}
	if p.config.Schema.Bucket != p.config.Data.Bucket {
		buckets = append(buckets, p.config.Schema.Bucket)
	}

	for _, bucket := range buckets {
		log.Info().Str("bucket", bucket).Msg("Validating target bucket")
		ok, err := p.config.Store.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
	}
	return nil
}

// Publish uploads every artifact. A failing stream is logged and does not
// stop the others.
func (p *Publisher) Publish(ctx context.Context, artifacts []stream.Artifact) Summary {
	summary := Summary{Results: make([]Result, 0, len(artifacts))}

	for _, a := range artifacts {
		manifest, err := p.publishOne(ctx, a)
		summary.Results = append(summary.Results, Result{Stream: a.Stream, Manifest: manifest, Err: err})

		if err != nil {
			log.Error().Err(err).Str("stream", a.Stream).Msg("Failed to publish stream")
			continue
		}

		log.Info().
			Str("stream", a.Stream).
			Int64("records", a.Records).
			Str("data", manifest.DataURI).
			Str("schema", manifest.SchemaURI).
			Msg("Published stream")

		if p.config.Notifier != nil {
			p.config.Notifier.Notify(ctx, manifest)
		}
	}

	return summary
}

func (p *Publisher) publishOne(ctx context.Context, a stream.Artifact) (Manifest, error) {
	checksum, err := FileChecksum(a.DataPath)
	if err != nil {
		return Manifest{}, err
	}

	meta := map[string]string{
		MetaChecksum: checksum,
		MetaStream:   a.Stream,
		MetaRecords:  strconv.FormatInt(a.Records, 10),
		MetaRunID:    p.config.RunID,
	}

	data := Object{
		Bucket:      p.config.Data.Bucket,
		Key:         p.config.Data.Key(a.DataName()),
		Path:        a.DataPath,
		ContentType: contentTypeAvro,
		Metadata:    meta,
	}
	if err := p.upload(ctx, "data", data); err != nil {
		return Manifest{}, err
	}

	sidecar := Object{
		Bucket:      p.config.Schema.Bucket,
		Key:         p.config.Schema.Key(a.SchemaName()),
		Path:        a.SchemaPath,
		ContentType: contentTypeJSON,
		Metadata: map[string]string{
			MetaStream: a.Stream,
			MetaRunID:  p.config.RunID,
		},
	}
	if err := p.upload(ctx, "schema", sidecar); err != nil {
		return Manifest{}, err
	}

	return Manifest{
		RunID:        p.config.RunID,
		Stream:       a.Stream,
		Records:      a.Records,
		DataURI:      p.config.Store.URI(data.Bucket, data.Key),
		SchemaURI:    p.config.Store.URI(sidecar.Bucket, sidecar.Key),
		DataChecksum: checksum,
		Codec:        a.Codec,
		PublishedAt:  p.config.Now().UTC(),
	}, nil
}

func (p *Publisher) upload(ctx context.Context, kind string, obj Object) error {
	log.Info().
		Str("file", obj.Path).
		Str("bucket", obj.Bucket).
		Str("key", obj.Key).
		Msg("Moving file to object store")

	start := time.Now()
	err := p.config.Backoff.Do(ctx, "upload "+obj.Key, func() error {
		return p.config.Store.Upload(ctx, obj)
	})
	telemetry.UploadDurationSeconds.With(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.UploadsTotal.With(kind, "failed").Inc()
		return fmt.Errorf("failed to upload %s to %s: %w", obj.Path, p.config.Store.URI(obj.Bucket, obj.Key), err)
	}
	telemetry.UploadsTotal.With(kind, "success").Inc()
	return nil
}

// FileChecksum returns the hex xxhash64 of a file
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strconv.FormatUint(d.Sum64(), 16), nil
}
