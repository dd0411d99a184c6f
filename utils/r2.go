// utils/r2.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"content-unlock-service/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxManifestBytes caps how much of a manifest object is read.
const maxManifestBytes = 8 << 20

// ErrObjectTooLarge is returned instead of a truncated object body.
var ErrObjectTooLarge = errors.New("r2: object exceeds size limit")

// R2 wraps an S3 client pointed at a Cloudflare R2 bucket.
type R2 struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	maxBytes int64
}

// NewR2 builds the client from static credentials; no network calls happen here.
func NewR2(ctx context.Context, cfg config.R2Config) (*R2, error) {
	if !cfg.Enabled() {
		return nil, errors.New("r2: bucket and account id (or endpoint) are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		maxBytes: maxManifestBytes,
	}, nil
}

// GetObject reads a whole (small) object, e.g. the catalog manifest. Objects
// over the size limit fail with ErrObjectTooLarge rather than being cut short.
func (r *R2) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from R2: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if int64(len(body)) > r.maxBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes: %w", key, r.maxBytes, ErrObjectTooLarge)
	}
	return body, nil
}

// PresignLocator returns a GET URL for key that expires after ttl.
func (r *R2) PresignLocator(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
