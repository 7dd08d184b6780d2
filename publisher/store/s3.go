// Package store provides implementations of the publisher.Store interface
// that finished Avro files are uploaded to.
package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/maxpert/s3avro/cfg"
	"github.com/maxpert/s3avro/publisher"
	"github.com/rs/zerolog/log"
)

// DefaultRegion is used when region_name is not configured
const DefaultRegion = "us-east-1"

func init() {
	publisher.RegisterStore(cfg.StoreS3, func(config *cfg.Configuration) (publisher.Store, error) {
		return NewS3Store(S3ConfigFrom(config))
	})
}

// S3Config holds connection settings for an S3 compatible service
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	EndpointURL     string // custom endpoint, e.g. a MinIO server
	DisableSSL      bool
	SkipVerify      bool
	CABundle        string // PEM file used to verify the server certificate
}

// S3ConfigFrom extracts S3 settings from the run configuration
func S3ConfigFrom(config *cfg.Configuration) S3Config {
	if config.APIVersion != "" {
		log.Debug().Str("api_version", config.APIVersion).Msg("api_version is ignored by the S3 client")
	}

	return S3Config{
		AccessKeyID:     config.AWSAccessKeyID,
		SecretAccessKey: config.AWSSecretAccessKey,
		SessionToken:    config.AWSSessionToken,
		Region:          config.RegionName,
		EndpointURL:     config.EndpointURL,
		DisableSSL:      !bool(config.UseSSL),
		SkipVerify:      config.Verify.Disabled,
		CABundle:        config.Verify.CABundle,
	}
}

// S3Store uploads objects to S3
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Store creates an S3 store with static credentials
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 store requires an access key and secret")
	}

	region := config.Region
	if region == "" {
		region = DefaultRegion
	}

	httpClient, err := newHTTPClient(config)
	if err != nil {
		return nil, err
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID, config.SecretAccessKey, config.SessionToken)),
		HTTPClient: httpClient,
	}
	if config.EndpointURL != "" {
		opts.BaseEndpoint = aws.String(endpointWithScheme(config.EndpointURL, config.DisableSSL))
		// custom endpoints rarely resolve virtual hosted buckets
		opts.UsePathStyle = true
	}
	opts.EndpointOptions.DisableHTTPS = config.DisableSSL

	client := s3.New(opts)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func newHTTPClient(config S3Config) (*awshttp.BuildableClient, error) {
	if !config.SkipVerify && config.CABundle == "" {
		return awshttp.NewBuildableClient(), nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	} else {
		pem, err := os.ReadFile(config.CABundle)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", config.CABundle)
		}
		tlsConfig.RootCAs = pool
	}

	return awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.TLSClientConfig = tlsConfig
	}), nil
}

func endpointWithScheme(endpoint string, disableSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if disableSSL {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}

// BucketExists issues a HEAD on the bucket. Only a definite "not found"
// reports false; other failures such as a forbidden HEAD are logged and the
// bucket is assumed to exist so the upload itself reports the real error.
func (s *S3Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		return false, nil
	}

	log.Warn().Err(err).Str("bucket", bucket).Msg("Unable to check bucket, assuming it exists")
	return true, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "404":
			return true
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// Upload streams the object's file to S3
func (s *S3Store) Upload(ctx context.Context, obj publisher.Object) error {
	f, err := os.Open(obj.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", obj.Path, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:   aws.String(obj.Bucket),
		Key:      aws.String(obj.Key),
		Body:     f,
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return err
	}
	return nil
}

// URI renders s3://bucket/key
func (s *S3Store) URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (s *S3Store) Close() error {
	return nil
}
