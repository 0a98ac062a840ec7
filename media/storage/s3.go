package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// s3API is the part of *s3.Client the provider uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Provider saves files to an S3-compatible bucket (AWS, MinIO).
type S3Provider struct {
	client   s3API
	bucket   string
	prefix   string
	endpoint string
	region   string
	path     bool
}

// NewS3Provider creates an S3 client with static credentials.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.NewInvalid("storage.s3.bucket", cfg.Bucket, "bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewStorage("s3 config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Provider(client, cfg), nil
}

func newS3Provider(client s3API, cfg S3Config) *S3Provider {
	return &S3Provider{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		region:   cfg.Region,
		path:     cfg.UsePathStyle,
	}
}

// Upload puts the object, renaming on collision.
func (p *S3Provider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	key, name, err := nextFreeKey(ctx, p, objectKey(p.prefix, input.Folder), input.Filename)
	if err != nil {
		return UploadOutput{}, err
	}

	data, err := io.ReadAll(input.File)
	if err != nil {
		return UploadOutput{}, apperrors.NewStorage("read", err).WithDetail("key", key)
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if input.ContentType != "" {
		params.ContentType = aws.String(input.ContentType)
	}

	if _, err := p.client.PutObject(ctx, params); err != nil {
		return UploadOutput{}, apperrors.NewStorage("s3 put", err).WithDetail("key", key)
	}

	return UploadOutput{
		URL:      p.objectURL(key),
		Filename: name,
		Size:     int64(len(data)),
		Metadata: input.Metadata,
	}, nil
}

// Exists issues a HEAD request for the key.
func (p *S3Provider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(strings.TrimPrefix(path, "/")),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return false, nil
	}
	return false, err
}

func (p *S3Provider) Name() string {
	return TypeS3
}

func (p *S3Provider) objectURL(key string) string {
	switch {
	case p.endpoint != "" && p.path:
		return fmt.Sprintf("%s/%s/%s", p.endpoint, p.bucket, key)
	case p.endpoint != "":
		return fmt.Sprintf("%s/%s", p.endpoint, key)
	default:
		return fmt.Sprintf("s3://%s/%s", p.bucket, key)
	}
}
