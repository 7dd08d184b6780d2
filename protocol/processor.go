package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxpert/s3avro/encoding"
	"github.com/maxpert/s3avro/publisher"
	"github.com/maxpert/s3avro/record"
	"github.com/maxpert/s3avro/schema"
	"github.com/maxpert/s3avro/stream"
	"github.com/maxpert/s3avro/telemetry"
	"github.com/rs/zerolog/log"
)

// Publisher relays finalized artifacts to the object store
type Publisher interface {
	Publish(ctx context.Context, artifacts []stream.Artifact) publisher.Summary
}

// Config configures a Processor
type Config struct {
	// TmpDir is the directory the run's work directory is created in
	TmpDir    string
	Delimiter string
	// RunSuffix is appended to every file name, e.g. "-20200101T000000"
	RunSuffix string
	RunID     string
	Writer    encoding.WriterOptions
	Filter    publisher.Filter
	Cache     *schema.Cache
	Publisher Publisher
}

// Processor consumes one run's worth of input
type Processor struct {
	config     Config
	registry   *stream.Registry
	checkpoint json.RawMessage
	line       int
}

// NewProcessor validates config and creates a processor
func NewProcessor(config Config) (*Processor, error) {
	if config.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if config.Delimiter == "" {
		config.Delimiter = "__"
	}
	if config.Cache == nil {
		cache, err := schema.NewCache(64)
		if err != nil {
			return nil, err
		}
		config.Cache = cache
	}
	return &Processor{config: config}, nil
}

// Run reads messages from r until EOF, publishes every stream and returns the
// last confirmed checkpoint. A nil checkpoint means none was confirmed.
// All files are written to a work directory that is removed before returning.
func (p *Processor) Run(ctx context.Context, r io.Reader) (json.RawMessage, error) {
	start := time.Now()

	workDir, err := os.MkdirTemp(p.config.TmpDir, "s3avro-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("dir", workDir).Msg("Failed to remove work directory")
		}
	}()
	log.Debug().Str("dir", workDir).Msg("Created work directory")

	p.registry = stream.NewRegistry(workDir, p.config.RunSuffix, p.writerOptions())
	defer p.registry.Close()
	p.checkpoint = nil
	p.line = 0

	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read input: %w", readErr)
		}

		if len(line) > 0 {
			p.line++
			if err := p.handle(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		}

		if readErr != nil {
			break
		}
	}

	artifacts, err := p.registry.Finalize()
	if err != nil {
		return nil, err
	}

	summary := p.config.Publisher.Publish(ctx, artifacts)
	log.Info().
		Int("lines", p.line).
		Int("published", summary.Published()).
		Int("failed", summary.Failed()).
		Dur("elapsed", time.Since(start)).
		Msg("Run complete")

	return p.checkpoint, nil
}

func (p *Processor) writerOptions() encoding.WriterOptions {
	opts := p.config.Writer
	opts.Metadata = make(map[string]string, len(p.config.Writer.Metadata)+1)
	for k, v := range p.config.Writer.Metadata {
		opts.Metadata[k] = v
	}
	if p.config.RunID != "" {
		opts.Metadata[stream.MetaRunID] = p.config.RunID
	}
	return opts
}

func (p *Processor) handle(line []byte) error {
	line = bytes.TrimRight(line, "\r\n")

	msg, err := ParseMessage(line)
	if err != nil {
		return err
	}
	telemetry.MessagesTotal.With(msg.Type).Inc()

	switch msg.Type {
	case TypeSchema:
		return p.handleSchema(msg)
	case TypeRecord:
		return p.handleRecord(msg)
	case TypeState:
		p.handleState(msg)
	case TypeActivateVersion:
		ev := log.Debug().Str("stream", msg.Stream)
		if msg.Version != nil {
			ev = ev.Int64("version", *msg.Version)
		}
		ev.Msg("Activate version")
	}
	return nil
}

func (p *Processor) handleSchema(msg *Message) error {
	compiled, hit, err := p.config.Cache.Compile(msg.Schema, p.config.Delimiter)
	if err != nil {
		return fmt.Errorf("stream %s: %w", msg.Stream, err)
	}
	if hit {
		telemetry.SchemasTotal.With("hit").Inc()
	} else {
		telemetry.SchemasTotal.With("miss").Inc()
	}

	filtered := p.config.Filter != nil && !p.config.Filter.Match(msg.Stream)
	state, err := p.registry.Announce(stream.Announcement{
		Name:          msg.Stream,
		Schema:        msg.Schema,
		KeyProperties: msg.KeyProperties,
		Compiled:      compiled,
		Filtered:      filtered,
	})
	if err != nil {
		return fmt.Errorf("stream %s: %w", msg.Stream, err)
	}

	log.Info().
		Str("stream", msg.Stream).
		Int("fields", len(compiled.Fields)).
		Int("date_fields", len(compiled.DateFields)).
		Bool("filtered", filtered).
		Bool("cached", hit).
		Str("data", state.DataPath).
		Msg("Registered stream")
	return nil
}

func (p *Processor) handleRecord(msg *Message) error {
	state, ok := p.registry.Get(msg.Stream)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, msg.Stream)
	}

	if err := state.Compiled.Validator.Validate(msg.Record); err != nil {
		return fmt.Errorf("stream %s: %w", msg.Stream, err)
	}

	flat, err := record.Flatten(msg.Record, p.config.Delimiter)
	if err != nil {
		return fmt.Errorf("stream %s: %w", msg.Stream, err)
	}
	if err := record.CoerceDates(flat, state.Compiled.DateFields); err != nil {
		return fmt.Errorf("stream %s: %w", msg.Stream, err)
	}

	if err := state.Append(flat); err != nil {
		return err
	}
	if state.Filtered {
		telemetry.RecordsFilteredTotal.With(msg.Stream).Inc()
	} else {
		telemetry.RecordsWrittenTotal.With(msg.Stream).Inc()
	}

	// data past the last STATE is not confirmed yet
	p.checkpoint = nil
	return nil
}

func (p *Processor) handleState(msg *Message) {
	if len(msg.Value) == 0 || bytes.Equal(bytes.TrimSpace(msg.Value), []byte("null")) {
		p.checkpoint = nil
	} else {
		p.checkpoint = append(json.RawMessage(nil), msg.Value...)
	}
	log.Debug().RawJSON("value", msg.Value).Msg("Checkpoint updated")
}
