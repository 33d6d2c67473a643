package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"poke-platform/internal/config"
)

// S3Uploader writes export files into an S3 bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Uploader resolves AWS credentials from the default chain.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "s3_uploader").Logger(),
	}, nil
}

// Upload puts one object under the given key.
func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put object s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Debug().
		Str("bucket", u.bucket).
		Str("key", key).
		Int("bytes", len(body)).
		Msg("object uploaded")
	return nil
}

var _ ObjectStore = (*S3Uploader)(nil)
