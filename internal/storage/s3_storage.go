package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"opalpixel/invoicing/internal/config"
)

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	Bucket() string
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	bucket   string
	s3Client *s3.Client
}

// NewS3Storage creates a new S3 storage service. It returns nil without a
// configured bucket; callers treat that as "archiving disabled".
func NewS3Storage(ctx context.Context, cfg *config.Config) (IS3Storage, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, nil
	}

	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		bucket:   cfg.AwsS3Bucket,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

func (s *s3Storage) Bucket() string {
	return s.bucket
}

// PutObject uploads body under key, overwriting any existing object.
func (s *s3Storage) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}
