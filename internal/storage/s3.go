// Package storage provides presigned S3 URLs for product images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by constructors when object storage is
// disabled; callers keep running without image uploads.
var ErrNotConfigured = errors.New("storage: object storage not configured")

// Presigner issues short-lived signed URLs against a single bucket.
type Presigner struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	logger  zerolog.Logger
}

// Options configures the presigner. Bucket and Region are required;
// Endpoint overrides the S3 endpoint for MinIO-style deployments.
type Options struct {
	Bucket   string
	Region   string
	Endpoint string
	TTL      time.Duration
}

// NewPresigner builds a presigner from AWS default credentials. Returns
// ErrNotConfigured when no bucket is set, so callers can treat storage
// as an optional dependency.
func NewPresigner(ctx context.Context, opts Options, logger zerolog.Logger) (*Presigner, error) {
	if opts.Bucket == "" {
		return nil, ErrNotConfigured
	}
	logger = logger.With().Str("component", "storage").Logger()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	logger.Info().Str("bucket", opts.Bucket).Str("region", opts.Region).Msg("object storage ready")

	return &Presigner{
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		ttl:     ttl,
		logger:  logger,
	}, nil
}

// PresignGet returns a signed download URL for the given object key.
func (p *Presigner) PresignGet(ctx context.Context, key string) (string, error) {
	if p == nil || p.presign == nil {
		return "", ErrNotConfigured
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("presign get failed")
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// PresignPut returns a signed upload URL; the client must send the same
// Content-Type it was signed with.
func (p *Presigner) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	if p == nil || p.presign == nil {
		return "", ErrNotConfigured
	}
	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("presign put failed")
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}
