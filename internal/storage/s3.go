package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config configures an S3-compatible bucket. Endpoint is optional; set it
// for non-AWS providers such as Cloudflare R2.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// S3Store implements Store on an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3Store with static credentials.
func NewS3Store(cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("initialized s3 storage", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)

	return &S3Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Put stores data at the specified key.
func (s *S3Store) Put(ctx context.Context, key string, data io.Reader) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "Put", Key: key, Err: err}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return &Error{Op: "Put", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("stored blob", "key", key)
	return nil
}

// Get retrieves the blob at the specified key.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, &Error{Op: "Get", Key: key, Err: err}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &Error{Op: "Get", Key: key, Err: wrapS3Error(err)}
	}
	return out.Body, nil
}

// Delete removes the blob. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "Delete", Key: key, Err: err}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &Error{Op: "Delete", Key: key, Err: wrapS3Error(err)}
	}
	return nil
}

// wrapS3Error converts SDK errors to storage sentinels.
func wrapS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		}
	}
	return err
}
