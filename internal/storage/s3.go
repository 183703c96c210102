// Package storage provides the S3-compatible presigning backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/prn-tf/fletcher-signer/internal/config"
)

// S3Presigner issues pre-signed PUT URLs against an S3-compatible store.
// Unlike the GCS backend, signing happens locally with the SDK's SigV4
// implementation using the configured static credentials.
type S3Presigner struct {
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Presigner creates an S3 presigning backend from configuration.
func NewS3Presigner(ctx context.Context, cfg config.S3SigningConfig, bucket string) (*S3Presigner, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Presigner{
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}, nil
}

// PresignUpload returns a pre-signed PUT URL for the given object key.
// The URL commits the uploader to the given content type.
func (p *S3Presigner) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	result, err := p.presignClient.PresignPutObject(ctx, input,
		s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return result.URL, nil
}
