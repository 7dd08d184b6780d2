package cfg

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// ErrMissingConfig is returned when a required configuration key is absent
var ErrMissingConfig = errors.New("missing required configuration")

// Store types understood by the publisher
const (
	StoreS3     = "s3"
	StoreNATS   = "nats"
	StoreMemory = "memory"
)

// Avro codecs supported by the container writer
const (
	CodecNull      = "null"
	CodecDeflate   = "deflate"
	CodecSnappy    = "snappy"
	CodecZStandard = "zstandard"
)

// NotificationConfiguration describes one destination for publication manifests
type NotificationConfiguration struct {
	Name    string   `json:"name" toml:"name"`
	Type    string   `json:"type" toml:"type"` // "kafka" or "nats"
	Brokers []string `json:"brokers" toml:"brokers"`
	NatsURL string   `json:"nats_url" toml:"nats_url"`
	Topic   string   `json:"topic" toml:"topic"`
	Format  string   `json:"format" toml:"format"` // "manifest"
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `json:"verbose" toml:"verbose"`
	Format  string `json:"format" toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics pushed at the end of a run
type PrometheusConfiguration struct {
	PushgatewayURL string `json:"pushgateway_url" toml:"pushgateway_url"`
	Job            string `json:"job" toml:"job"`
}

// Configuration is the main configuration structure
type Configuration struct {
	AWSAccessKeyID        string `json:"aws_access_key_id" toml:"aws_access_key_id"`
	AWSSecretAccessKey    string `json:"aws_secret_access_key" toml:"aws_secret_access_key"`
	AWSSessionToken       string `json:"aws_session_token" toml:"aws_session_token"`
	RegionName            string `json:"region_name" toml:"region_name"`
	APIVersion            string `json:"api_version" toml:"api_version"`
	UseSSL                Toggle `json:"use_ssl" toml:"use_ssl"`
	Verify                Verify `json:"verify" toml:"verify"`
	EndpointURL           string `json:"endpoint_url" toml:"endpoint_url"`
	TargetBucketKey       string `json:"target_bucket_key" toml:"target_bucket_key"`
	TargetSchemaBucketKey string `json:"target_schema_bucket_key" toml:"target_schema_bucket_key"`

	FlattenDelimiter  string `json:"flatten_delimiter" toml:"flatten_delimiter"`
	IncludeTimestamp  Toggle `json:"include_timestamp" toml:"include_timestamp"`
	TmpDir            string `json:"tmp_dir" toml:"tmp_dir"`
	DisableCollection Toggle `json:"disable_collection" toml:"disable_collection"`
	CollectorURL      string `json:"collector_url" toml:"collector_url"`

	Store   string `json:"store" toml:"store"`
	NatsURL string `json:"nats_url" toml:"nats_url"`

	AvroCodec        string `json:"avro_codec" toml:"avro_codec"`
	CompressionLevel int    `json:"compression_level" toml:"compression_level"`
	BlockLength      int    `json:"block_length" toml:"block_length"`

	FilterStreams   []string `json:"filter_streams" toml:"filter_streams"`
	SchemaCacheSize int      `json:"schema_cache_size" toml:"schema_cache_size"`

	UploadMaxAttempts    int `json:"upload_max_attempts" toml:"upload_max_attempts"`
	UploadRetryInitialMS int `json:"upload_retry_initial_ms" toml:"upload_retry_initial_ms"`
	UploadRetryMaxMS     int `json:"upload_retry_max_ms" toml:"upload_retry_max_ms"`

	Notifications []NotificationConfiguration `json:"notifications" toml:"notifications"`
	Logging       LoggingConfiguration        `json:"logging" toml:"logging"`
	Prometheus    PrometheusConfiguration     `json:"prometheus" toml:"prometheus"`
}

// BucketKey is a bucket plus an optional key prefix inside it
type BucketKey struct {
	Bucket string
	Prefix string
}

// Key joins the prefix and a file name into an object key
func (b BucketKey) Key(name string) string {
	if b.Prefix == "" {
		return name
	}
	return b.Prefix + "/" + name
}

// String renders the address as bucket/prefix
func (b BucketKey) String() string {
	if b.Prefix == "" {
		return b.Bucket
	}
	return b.Bucket + "/" + b.Prefix
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "", "Path to configuration file (.json or .toml)")
	VerboseFlag    = flag.Bool("verbose", false, "Enable debug logging (overrides config)")
)

func init() {
	flag.StringVar(ConfigPathFlag, "c", "", "Path to configuration file (shorthand)")
}

// Default returns a configuration populated with defaults
func Default() *Configuration {
	return &Configuration{
		UseSSL:           true,
		FlattenDelimiter: "__",
		IncludeTimestamp: true,
		CollectorURL:     "http://collector.singer.io/i",
		Store:            StoreS3,
		AvroCodec:        CodecNull,
		SchemaCacheSize:  64,

		UploadMaxAttempts:    1,
		UploadRetryInitialMS: 200,
		UploadRetryMaxMS:     5000,

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},
		Prometheus: PrometheusConfiguration{
			Job: "s3avro",
		},
	}
}

// Config holds the active configuration
var Config = Default()

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		log.Info().Str("path", configPath).Msg("Loading configuration")
		if err := decodeFile(configPath, Config); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("No config file given, using defaults")
	}

	if *VerboseFlag {
		Config.Logging.Verbose = true
	}

	return nil
}

func decodeFile(path string, into *Configuration) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, into); err != nil {
			return fmt.Errorf("failed to decode config: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// Validate checks configuration for errors
func Validate() error {
	switch Config.Store {
	case "", StoreS3:
		Config.Store = StoreS3
		if Config.AWSAccessKeyID == "" {
			return fmt.Errorf("%w: 'aws_access_key_id' MUST be defined in config", ErrMissingConfig)
		}
		if Config.AWSSecretAccessKey == "" {
			return fmt.Errorf("%w: 'aws_secret_access_key' MUST be defined in config", ErrMissingConfig)
		}
	case StoreNATS:
		if Config.NatsURL == "" {
			return fmt.Errorf("%w: 'nats_url' MUST be defined for the nats store", ErrMissingConfig)
		}
	case StoreMemory:
		log.Warn().Msg("Memory store configured, artifacts will not outlive the process")
	default:
		return fmt.Errorf("unknown store: %s", Config.Store)
	}

	if Config.TargetBucketKey == "" {
		return fmt.Errorf("%w: 'target_bucket_key' MUST be defined in config", ErrMissingConfig)
	}
	if _, _, err := Config.Targets(); err != nil {
		return err
	}

	if Config.FlattenDelimiter == "" {
		Config.FlattenDelimiter = "__"
	}

	if Config.TmpDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		Config.TmpDir = cwd
	}
	info, err := os.Stat(Config.TmpDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("path '%s' from config.tmp_dir does not exist", Config.TmpDir)
	}

	switch Config.AvroCodec {
	case "":
		Config.AvroCodec = CodecNull
	case CodecNull, CodecDeflate, CodecSnappy, CodecZStandard:
	default:
		return fmt.Errorf("invalid avro_codec: %s", Config.AvroCodec)
	}

	if Config.BlockLength < 0 {
		return fmt.Errorf("block_length must be >= 0")
	}
	if Config.SchemaCacheSize < 1 {
		return fmt.Errorf("schema_cache_size must be >= 1")
	}
	if Config.UploadMaxAttempts < 1 {
		return fmt.Errorf("upload_max_attempts must be >= 1")
	}
	if Config.UploadRetryInitialMS < 0 || Config.UploadRetryMaxMS < 0 {
		return fmt.Errorf("upload retry delays must be >= 0")
	}

	for i, n := range Config.Notifications {
		if n.Name == "" {
			Config.Notifications[i].Name = fmt.Sprintf("%s-%d", n.Type, i)
		}
		if n.Format == "" {
			Config.Notifications[i].Format = "manifest"
		}
		if n.Topic == "" {
			return fmt.Errorf("notification %d: topic is required", i)
		}
		switch n.Type {
		case "kafka":
			if len(n.Brokers) == 0 {
				return fmt.Errorf("notification %d: kafka requires brokers", i)
			}
		case "nats":
			if n.NatsURL == "" {
				return fmt.Errorf("notification %d: nats requires nats_url", i)
			}
		default:
			return fmt.Errorf("notification %d: unknown type %q", i, n.Type)
		}
	}

	return nil
}

// Targets resolves the data and schema bucket addresses. The schema target
// falls back to the data target when target_schema_bucket_key is unset.
func (c *Configuration) Targets() (data BucketKey, schema BucketKey, err error) {
	data, err = ParseBucketKey(c.TargetBucketKey)
	if err != nil {
		return BucketKey{}, BucketKey{}, fmt.Errorf("invalid target_bucket_key: %w", err)
	}

	if c.TargetSchemaBucketKey == "" {
		return data, data, nil
	}

	schema, err = ParseBucketKey(c.TargetSchemaBucketKey)
	if err != nil {
		return BucketKey{}, BucketKey{}, fmt.Errorf("invalid target_schema_bucket_key: %w", err)
	}
	return data, schema, nil
}

// RunSuffix returns the file name suffix for this run
func (c *Configuration) RunSuffix(now time.Time) string {
	if !bool(c.IncludeTimestamp) {
		return ""
	}
	return "-" + now.Format("20060102T150405")
}

// ParseBucketKey splits "bucket/some/prefix" into its bucket and prefix.
// Empty segments and scheme segments such as "s3:" are dropped.
func ParseBucketKey(s string) (BucketKey, error) {
	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(s, "/") {
		if seg == "" || strings.HasSuffix(seg, ":") {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return BucketKey{}, fmt.Errorf("no bucket in %q", s)
	}

	return BucketKey{
		Bucket: segments[0],
		Prefix: strings.Join(segments[1:], "/"),
	}, nil
}
