// internal/common/aws/s3.go
package aws

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"change-order-generator/internal/common/config"
)

// S3Store uploads objects to an S3-compatible bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	baseURL   string
	publicACL bool
}

// NewS3Store builds a client from the storage settings. Static keys win over
// the default credential chain; Endpoint targets MinIO, GCS interop or
// another S3-compatible service.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		baseURL:   strings.TrimRight(cfg.ObjectURLBase(), "/"),
		publicACL: cfg.PublicACL,
	}, nil
}

// Upload puts content under key and returns its public URL. The public-read
// ACL is only sent when both the caller and the store allow it; buckets with
// uniform access reject object ACLs.
func (s *S3Store) Upload(ctx context.Context, key string, content []byte, contentType string, public bool) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      awssdk.String(s.bucket),
		Key:         awssdk.String(key),
		Body:        bytes.NewReader(content),
		ContentType: awssdk.String(contentType),
	}
	if public && s.publicACL {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL is the public address of key.
func (s *S3Store) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Health checks that the bucket exists and is reachable.
func (s *S3Store) Health(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: awssdk.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) Bucket() string {
	return s.bucket
}
