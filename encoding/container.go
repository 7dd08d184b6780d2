package encoding

import (
	"fmt"
	"os"

	"github.com/hamba/avro/v2/ocf"
	"github.com/klauspost/compress/zstd"
	"github.com/maxpert/s3avro/schema"
)

// Codec names accepted by WriterOptions
const (
	CodecNull      = string(ocf.Null)
	CodecDeflate   = string(ocf.Deflate)
	CodecSnappy    = string(ocf.Snappy)
	CodecZStandard = string(ocf.ZStandard)
)

// WriterOptions configures a container file
type WriterOptions struct {
	Codec string
	// CompressionLevel applies to deflate and zstandard; 0 keeps the codec default
	CompressionLevel int
	// BlockLength is the number of records per block; 0 keeps the library default
	BlockLength int
	Metadata    map[string]string
}

func (o WriterOptions) encoderOptions() ([]ocf.EncoderFunc, error) {
	opts := make([]ocf.EncoderFunc, 0, 4)

	switch o.Codec {
	case "", CodecNull:
		opts = append(opts, ocf.WithCodec(ocf.Null))
	case CodecDeflate:
		opts = append(opts, ocf.WithCodec(ocf.Deflate))
		if o.CompressionLevel != 0 {
			opts = append(opts, ocf.WithCompressionLevel(o.CompressionLevel))
		}
	case CodecSnappy:
		opts = append(opts, ocf.WithCodec(ocf.Snappy))
	case CodecZStandard:
		opts = append(opts, ocf.WithCodec(ocf.ZStandard))
		if o.CompressionLevel != 0 {
			level := zstd.EncoderLevelFromZstd(o.CompressionLevel)
			opts = append(opts, ocf.WithZStandardEncoderOptions(zstd.WithEncoderLevel(level)))
		}
	default:
		return nil, fmt.Errorf("unsupported avro codec: %s", o.Codec)
	}

	if o.BlockLength > 0 {
		opts = append(opts, ocf.WithBlockLength(o.BlockLength))
	}

	if len(o.Metadata) > 0 {
		meta := make(map[string][]byte, len(o.Metadata))
		for k, v := range o.Metadata {
			meta[k] = []byte(v)
		}
		opts = append(opts, ocf.WithMetadata(meta))
	}

	return opts, nil
}

// ContainerWriter appends flattened records to an Avro object container file.
// It is not safe for concurrent use.
type ContainerWriter struct {
	path   string
	file   *os.File
	enc    *ocf.Encoder
	fields []schema.Field
	count  int64
	closed bool
}

// Create truncates path and writes a container header for doc
func Create(path string, doc Document, opts WriterOptions) (*ContainerWriter, error) {
	writerSchema, err := doc.WriterSchema()
	if err != nil {
		return nil, err
	}

	encOpts, err := opts.encoderOptions()
	if err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc, err := ocf.NewEncoder(writerSchema.String(), file, encOpts...)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open avro encoder for %s: %w", path, err)
	}

	return &ContainerWriter{
		path:   path,
		file:   file,
		enc:    enc,
		fields: doc.Fields,
	}, nil
}

// Append shapes and encodes one flattened record
func (w *ContainerWriter) Append(flat map[string]any) error {
	if w.closed {
		return fmt.Errorf("append to closed container %s", w.path)
	}

	datum, err := Shape(w.fields, flat)
	if err != nil {
		return err
	}

	if err := w.enc.Encode(datum); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far
func (w *ContainerWriter) Count() int64 {
	return w.count
}

// Path returns the container's file path
func (w *ContainerWriter) Path() string {
	return w.path
}

// Close flushes the last block and closes the file. Closing twice is a no-op.
func (w *ContainerWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to flush %s: %w", w.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, fileErr)
	}
	return nil
}
