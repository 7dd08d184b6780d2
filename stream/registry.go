// Package stream tracks the per-stream state of one run: the compiled schema,
// the output files and the number of records written.
package stream

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxpert/s3avro/encoding"
	"github.com/maxpert/s3avro/schema"
	"github.com/rs/zerolog/log"
)

// Metadata keys written into every container header
const (
	MetaStream = "s3avro.stream"
	MetaRunID  = "s3avro.run_id"
)

// Announcement is a parsed SCHEMA message
type Announcement struct {
	Name          string
	Schema        json.RawMessage
	KeyProperties []string
	Compiled      *schema.Compiled
	// Filtered streams are tracked but write no files
	Filtered bool
}

// State is the live state of one stream
type State struct {
	Name          string
	Schema        json.RawMessage
	KeyProperties []string
	Compiled      *schema.Compiled
	Document      encoding.Document
	Filtered      bool

	SidecarPath string
	DataPath    string

	writer  *encoding.ContainerWriter
	records int64
	skipped int64
}

// Append writes one flattened record, or counts it as skipped when the
// stream is filtered
func (s *State) Append(flat map[string]any) error {
	if s.Filtered {
		s.skipped++
		return nil
	}
	if err := s.writer.Append(flat); err != nil {
		return fmt.Errorf("stream %s: %w", s.Name, err)
	}
	s.records++
	return nil
}

// Records returns the number of records written
func (s *State) Records() int64 {
	return s.records
}

// Skipped returns the number of records dropped by the filter
func (s *State) Skipped() int64 {
	return s.skipped
}

// Artifact is a finalized stream ready for publication
type Artifact struct {
	Stream     string
	DataPath   string
	SchemaPath string
	Records    int64
	Codec      string
}

// DataName is the object name of the data file
func (a Artifact) DataName() string {
	return filepath.Base(a.DataPath)
}

// SchemaName is the object name of the schema sidecar
func (a Artifact) SchemaName() string {
	return filepath.Base(a.SchemaPath)
}

// Registry owns every stream announced during a run
type Registry struct {
	dir     string
	suffix  string
	options encoding.WriterOptions
	streams map[string]*State
	order   []string
}

// NewRegistry creates a registry writing files into dir. suffix is appended
// to every file's base name.
func NewRegistry(dir, suffix string, options encoding.WriterOptions) *Registry {
	return &Registry{
		dir:     dir,
		suffix:  suffix,
		options: options,
		streams: make(map[string]*State),
		order:   make([]string, 0, 8),
	}
}

// Announce creates or replaces a stream's state. A replaced stream's writer
// is closed and its files are truncated and reopened.
func (r *Registry) Announce(a Announcement) (*State, error) {
	doc, err := encoding.NewDocument(a.Name, a.Compiled.Fields)
	if err != nil {
		return nil, err
	}

	prev, exists := r.streams[a.Name]
	if exists && prev.writer != nil {
		log.Info().Str("stream", a.Name).Int64("records", prev.records).Msg("Schema re-announced, reopening stream files")
		if err := prev.writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close superseded writer for %s: %w", a.Name, err)
		}
		prev.writer = nil
	}

	base := filepath.Join(r.dir, FileBase(a.Name)+r.suffix)
	state := &State{
		Name:          a.Name,
		Schema:        a.Schema,
		KeyProperties: a.KeyProperties,
		Compiled:      a.Compiled,
		Document:      doc,
		Filtered:      a.Filtered,
		SidecarPath:   base + ".avsc",
		DataPath:      base + ".avro",
	}

	if !a.Filtered {
		if err := doc.WriteSidecar(state.SidecarPath); err != nil {
			return nil, err
		}

		writer, err := encoding.Create(state.DataPath, doc, r.writerOptions(a.Name))
		if err != nil {
			return nil, err
		}
		state.writer = writer
	}

	if !exists {
		r.order = append(r.order, a.Name)
	}
	r.streams[a.Name] = state
	return state, nil
}

func (r *Registry) writerOptions(stream string) encoding.WriterOptions {
	opts := r.options
	opts.Metadata = make(map[string]string, len(r.options.Metadata)+1)
	for k, v := range r.options.Metadata {
		opts.Metadata[k] = v
	}
	opts.Metadata[MetaStream] = stream
	return opts
}

// Get returns the state of an announced stream
func (r *Registry) Get(name string) (*State, bool) {
	s, ok := r.streams[name]
	return s, ok
}

// Len returns the number of announced streams
func (r *Registry) Len() int {
	return len(r.streams)
}

// Finalize closes every open writer and returns the artifacts of unfiltered
// streams in announcement order
func (r *Registry) Finalize() ([]Artifact, error) {
	codec := r.options.Codec
	if codec == "" {
		codec = encoding.CodecNull
	}

	artifacts := make([]Artifact, 0, len(r.order))
	for _, name := range r.order {
		s := r.streams[name]
		if s.Filtered {
			log.Debug().Str("stream", name).Int64("skipped", s.skipped).Msg("Stream filtered, nothing to publish")
			continue
		}

		if err := s.writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to finalize stream %s: %w", name, err)
		}

		artifacts = append(artifacts, Artifact{
			Stream:     name,
			DataPath:   s.DataPath,
			SchemaPath: s.SidecarPath,
			Records:    s.records,
			Codec:      codec,
		})
	}
	return artifacts, nil
}

// Close releases every writer without reporting errors. Used on abort paths.
func (r *Registry) Close() {
	for _, s := range r.streams {
		if s.writer != nil {
			_ = s.writer.Close()
		}
	}
}

// FileBase turns a stream name into a file name without directories
func FileBase(stream string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(stream)
}
