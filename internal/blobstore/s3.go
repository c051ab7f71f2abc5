package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// S3Config configures S3Store.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint points at an S3-compatible service (MinIO, LocalStack).
	// Setting it switches the client to path-style addressing.
	Endpoint string
	// Prefix is prepended to every key.
	Prefix string
}

// S3Store implements Store using Amazon S3.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store loads the default AWS credential chain and creates a store.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, bucket, prefix string, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
		logger: logger,
	}
}

func (s *S3Store) objectKey(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return applyPrefix(s.prefix, clean), nil
}

// Put uploads the reader contents.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return 0, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}

	// Seekable bodies keep their length so the SDK can sign and checksum
	// them up front; anything else is streamed and counted.
	var size func() int64
	if rs, ok := r.(io.ReadSeeker); ok {
		n, err := remaining(rs)
		if err != nil {
			return 0, fmt.Errorf("measure body: %w", err)
		}
		input.Body = rs
		input.ContentLength = aws.Int64(n)
		size = func() int64 { return n }
	} else {
		counter := &countingReader{r: r}
		input.Body = counter
		size = func() int64 { return counter.n }
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return size(), nil
}

// Open downloads a stored object for reading.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	s.logger.Debug("blob deleted", zap.String("bucket", s.bucket), zap.String("key", objectKey))
	return nil
}

// Exists issues a HEAD request for the object.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return true, nil
}

// remaining returns the bytes left between the current offset and the end.
func remaining(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

// isS3NotFound matches both typed errors and the bare 404 code HEAD returns.
func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ Store = (*S3Store)(nil)
