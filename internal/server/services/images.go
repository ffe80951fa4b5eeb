package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/storefront/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ImageSigner turns a stored image key into a URL a browser can fetch.
type ImageSigner interface {
	SignURL(ctx context.Context, key string) (string, error)
}

// isAbsoluteURL reports whether key already is a public link, as seeded
// demo products use. Such keys are served unchanged.
func isAbsoluteURL(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}

// S3ImageSigner presigns GET requests against an S3-compatible bucket.
type S3ImageSigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

// NewS3ImageSigner builds the presign client once from cfg's S3 settings.
func NewS3ImageSigner(ctx context.Context, cfg *sc.Config) (*S3ImageSigner, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ImageSigner{
		client: newS3PresignClient(client),
		bucket: cfg.S3Bucket,
		ttl:    cfg.ImageURLTTL,
	}, nil
}

func (s *S3ImageSigner) SignURL(ctx context.Context, key string) (string, error) {
	if isAbsoluteURL(key) {
		return key, nil
	}

	req, err := presignGetObject(s.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// NopImageSigner is used when no bucket is configured. It serves absolute
// URLs and drops bare keys.
type NopImageSigner struct{}

func (NopImageSigner) SignURL(_ context.Context, key string) (string, error) {
	if isAbsoluteURL(key) {
		return key, nil
	}
	return "", nil
}

// NewImageSigner picks the S3 signer when a bucket is configured.
func NewImageSigner(ctx context.Context, cfg *sc.Config) (ImageSigner, error) {
	if cfg.S3Bucket == "" {
		return NopImageSigner{}, nil
	}
	return NewS3ImageSigner(ctx, cfg)
}
