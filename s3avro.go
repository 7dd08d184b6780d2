package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/encoding"
	"github.com/maxpert/s3avro/protocol"
	"github.com/maxpert/s3avro/publisher"
	_ "github.com/maxpert/s3avro/publisher/sink"
	_ "github.com/maxpert/s3avro/publisher/store"
	_ "github.com/maxpert/s3avro/publisher/transformer"
	"github.com/maxpert/s3avro/schema"
	"github.com/maxpert/s3avro/stream"
	"github.com/maxpert/s3avro/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

// pushTimeout bounds the final metrics push
const pushTimeout = 10 * time.Second

func main() {
	flag.Parse()

	// stdout carries the checkpoint, everything else goes to stderr
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("version", version).Msg("s3avro - Singer target for Avro on object storage")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	if telemetry.Enabled() {
		telemetry.InitMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pingDone <-chan struct{}
	if !bool(cfg.Config.DisableCollection) {
		log.Debug().Msg("Sending anonymous usage data")
		pingDone = telemetry.StartUsagePing(ctx, cfg.Config.CollectorURL, version)
	} else {
		log.Info().Msg("Collection disabled")
	}

	start := time.Now()
	checkpoint, err := run(ctx, os.Stdin)
	if err != nil {
		stop()
		log.Fatal().Err(err).Msg("Run failed")
	}

	if err := emitCheckpoint(os.Stdout, checkpoint); err != nil {
		log.Fatal().Err(err).Msg("Failed to emit state")
	}

	telemetry.RunDurationSeconds.Observe(time.Since(start).Seconds())
	telemetry.LastSuccessTimestamp.SetToCurrentTime()
	pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	if err := telemetry.Push(pushCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
	}
	cancel()

	if pingDone != nil {
		<-pingDone
	}
}

func setupLogging() {
	var writer io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stderr
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}
}

// run wires the store, publisher and processor and consumes in. Deferred
// cleanup runs before the caller decides to exit.
func run(ctx context.Context, in io.Reader) (json.RawMessage, error) {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("store", cfg.Config.Store).Msg("Starting run")

	store, err := publisher.NewStore(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	data, schemaTarget, err := cfg.Config.Targets()
	if err != nil {
		return nil, err
	}

	backoff := publisher.Backoff{
		MaxAttempts: cfg.Config.UploadMaxAttempts,
		Initial:     time.Duration(cfg.Config.UploadRetryInitialMS) * time.Millisecond,
		Max:         time.Duration(cfg.Config.UploadRetryMaxMS) * time.Millisecond,
	}

	var notifier *publisher.Notifier
	if len(cfg.Config.Notifications) > 0 {
		notifier, err = publisher.NewNotifier(cfg.Config.Notifications, backoff)
		if err != nil {
			return nil, err
		}
		defer notifier.Close()
		log.Info().Int("sinks", notifier.Len()).Msg("Publication notifications enabled")
	}

	pub, err := publisher.New(publisher.Config{
		Store:    store,
		Data:     data,
		Schema:   schemaTarget,
		RunID:    runID,
		Backoff:  backoff,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}

	if err := pub.VerifyTargets(ctx); err != nil {
		return nil, err
	}

	filter, err := publisher.NewGlobFilter(cfg.Config.FilterStreams)
	if err != nil {
		return nil, err
	}

	cache, err := schema.NewCache(cfg.Config.SchemaCacheSize)
	if err != nil {
		return nil, err
	}

	processor, err := protocol.NewProcessor(protocol.Config{
		TmpDir:    cfg.Config.TmpDir,
		Delimiter: cfg.Config.FlattenDelimiter,
		RunSuffix: cfg.Config.RunSuffix(time.Now()),
		RunID:     runID,
		Writer: encoding.WriterOptions{
			Codec:            cfg.Config.AvroCodec,
			CompressionLevel: cfg.Config.CompressionLevel,
			BlockLength:      cfg.Config.BlockLength,
			Metadata:         map[string]string{stream.MetaRunID: runID},
		},
		Filter:    filter,
		Cache:     cache,
		Publisher: pub,
	})
	if err != nil {
		return nil, err
	}

	return processor.Run(ctx, bufio.NewReaderSize(in, 1<<20))
}

// emitCheckpoint writes the final state as one compact JSON line. Nothing is
// written when no checkpoint was confirmed.
func emitCheckpoint(w io.Writer, checkpoint json.RawMessage) error {
	if checkpoint == nil {
		return nil
	}

	line, err := json.Marshal(checkpoint)
	if err != nil {
		return err
	}
	log.Debug().RawJSON("state", line).Msg("Emitting state")

	_, err = fmt.Fprintf(w, "%s\n", line)
	return err
}
