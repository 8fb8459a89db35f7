package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-hclog"
)

// S3Config contains configuration for the S3 blob store.
type S3Config struct {
	Endpoint  string // custom endpoint for MinIO or other S3-compatible services
	Region    string
	Bucket    string
	Prefix    string // optional namespace prefix
	AccessKey string
	SecretKey string

	RequestTimeoutSeconds int
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

// S3Store keeps blobs in an S3 or S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	cfg    *S3Config
	logger hclog.Logger
}

// NewS3Store creates an S3-backed blob store and verifies the bucket is
// reachable.
func NewS3Store(ctx context.Context, cfg *S3Config, logger hclog.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	timeout := cfg.RequestTimeoutSeconds
	if timeout == 0 {
		timeout = 30
	}
	httpClient := &http.Client{Timeout: time.Duration(timeout) * time.Second}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style addressing for MinIO
			o.UsePathStyle = true
		}
	})

	store := &S3Store{
		client: client,
		cfg:    cfg,
		logger: logger.Named("s3-store"),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s is not accessible: %w", cfg.Bucket, err)
	}

	logger.Info("S3 store initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return store, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.cfg.Prefix != "" {
		return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + key
	}
	return key
}

// Put writes data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to S3: %w", err)
	}
	s.logger.Debug("blob written", "key", objectKey, "bytes", len(data))
	return fmt.Sprintf("s3:%s/%s", s.cfg.Bucket, objectKey), nil
}

// Get resolves an s3 ref.
func (s *S3Store) Get(ctx context.Context, ref string) ([]byte, error) {
	objectKey, err := s.parseRef(ref)
	if err != nil {
		return nil, err
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object content: %w", err)
	}
	return data, nil
}

// Delete removes the blob behind ref.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	objectKey, err := s.parseRef(ref)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// parseRef extracts the object key from a ref of the form
// "s3:{bucket}/{key}".
func (s *S3Store) parseRef(ref string) (string, error) {
	scheme, rest, err := splitRef(ref)
	if err != nil {
		return "", err
	}
	if scheme != "s3" {
		return "", fmt.Errorf("ref %q is not an s3 ref", ref)
	}
	key := strings.TrimPrefix(rest, s.cfg.Bucket+"/")
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("malformed blob ref %q", ref)
	}
	return key, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(key, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
