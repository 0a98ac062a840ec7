package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// ossBucket is the part of *oss.Bucket the provider uses.
type ossBucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
}

// OSSProvider saves files to an Aliyun OSS bucket.
type OSSProvider struct {
	bucket ossBucket
	folder string
	domain string // custom domain or CDN domain
}

// NewOSSProvider creates a new OSS storage provider.
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSProvider(cfg OSSConfig) (*OSSProvider, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperrors.NewInvalid("storage.oss", cfg.Bucket, "endpoint and bucket are required")
	}

	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, apperrors.NewStorage("oss client", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, apperrors.NewStorage("oss bucket", err).WithDetail("bucket", cfg.Bucket)
	}

	return newOSSProvider(bucket, cfg), nil
}

func newOSSProvider(bucket ossBucket, cfg OSSConfig) *OSSProvider {
	domain := cfg.Domain
	if domain == "" {
		domain = fmt.Sprintf("https://%s.%s", cfg.Bucket, cfg.Endpoint)
	} else if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	return &OSSProvider{
		bucket: bucket,
		folder: strings.Trim(cfg.Folder, "/"),
		domain: strings.TrimSuffix(domain, "/"),
	}
}

// Upload puts the object, renaming on collision.
func (p *OSSProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	key, name, err := nextFreeKey(ctx, p, objectKey(p.folder, input.Folder), input.Filename)
	if err != nil {
		return UploadOutput{}, err
	}

	options := []oss.Option{oss.WithContext(ctx)}
	if input.ContentType != "" {
		options = append(options, oss.ContentType(input.ContentType))
	}

	counter := &countingReader{r: input.File}
	if err := p.bucket.PutObject(key, counter, options...); err != nil {
		return UploadOutput{}, apperrors.NewStorage("oss put", err).WithDetail("key", key)
	}

	return UploadOutput{
		URL:      fmt.Sprintf("%s/%s", p.domain, key),
		Filename: name,
		Size:     counter.n,
		Metadata: input.Metadata,
	}, nil
}

// Exists checks if an object exists in OSS
func (p *OSSProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.bucket.IsObjectExist(strings.TrimPrefix(path, "/"), oss.WithContext(ctx))
}

func (p *OSSProvider) Name() string {
	return TypeOSS
}
