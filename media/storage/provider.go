// Package storage saves compressed results to a destination: a local folder or
// an object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// Provider types accepted by NewFromConfig.
const (
	TypeLocal = "local"
	TypeOSS   = "oss"
	TypeS3    = "s3"
)

// maxRenameAttempts bounds the "name (n).ext" search.
const maxRenameAttempts = 10000

// Provider is a download sink.
type Provider interface {
	// Upload stores the file. An existing name is never overwritten; the stored
	// name is reported in UploadOutput.Filename.
	Upload(ctx context.Context, input UploadInput) (UploadOutput, error)
	// Exists reports whether path is already taken.
	Exists(ctx context.Context, path string) (bool, error)
	// Name identifies the provider type.
	Name() string
}

// UploadInput describes one file to save.
type UploadInput struct {
	File        io.Reader
	Filename    string
	Folder      string
	ContentType string
	Size        int64
	Metadata    map[string]any
}

// UploadOutput describes a saved file.
type UploadOutput struct {
	URL      string         `json:"url"`
	Filename string         `json:"filename"`
	Size     int64          `json:"size"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Config selects and configures a provider.
type Config struct {
	Type  string      `mapstructure:"type" json:"type" yaml:"type" default:"local" validate:"oneof=local oss s3"`
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
	S3    S3Config    `mapstructure:"s3" json:"s3" yaml:"s3"`
}

// LocalConfig configures the local folder sink.
type LocalConfig struct {
	BasePath string `mapstructure:"base-path" json:"basePath" yaml:"base-path" default:"compressed"`
}

// OSSConfig configures the Aliyun OSS sink.
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"accessKeyId" yaml:"access-key-id"`
	AccessKeySecret string `mapstructure:"access-key-secret" json:"-" yaml:"access-key-secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Folder          string `mapstructure:"folder" json:"folder" yaml:"folder"`
	Domain          string `mapstructure:"domain" json:"domain" yaml:"domain"`
}

// S3Config configures the S3-compatible sink.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" json:"region" yaml:"region" default:"us-east-1"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"accessKeyId" yaml:"access-key-id"`
	SecretAccessKey string `mapstructure:"secret-access-key" json:"-" yaml:"secret-access-key"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
	UsePathStyle    bool   `mapstructure:"use-path-style" json:"usePathStyle" yaml:"use-path-style"`
}

// NewFromConfig builds the provider named by cfg.Type.
func NewFromConfig(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalProvider(cfg.Local.BasePath)
	case TypeOSS:
		return NewOSSProvider(cfg.OSS)
	case TypeS3:
		return NewS3Provider(ctx, cfg.S3)
	default:
		return nil, apperrors.NewInvalid("storage.type", cfg.Type, "unsupported provider type")
	}
}

// CandidateName returns the n-th name tried for filename: the name itself for
// n == 0, then "base (n).ext".
func CandidateName(filename string, n int) string {
	if n == 0 {
		return filename
	}
	ext := path.Ext(filename)
	if ext == filename {
		ext = ""
	}
	base := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// nextFreeKey finds the first candidate key under folder that does not exist.
func nextFreeKey(ctx context.Context, p Provider, folder, filename string) (string, string, error) {
	for n := 0; n < maxRenameAttempts; n++ {
		name := CandidateName(filename, n)
		key := objectKey(folder, name)

		taken, err := p.Exists(ctx, key)
		if err != nil {
			return "", "", apperrors.NewStorage("exists", err).WithDetail("key", key)
		}
		if !taken {
			return key, name, nil
		}
	}
	return "", "", apperrors.NewStorage("rename", fmt.Errorf("no free name for %s", filename))
}

func objectKey(folder, name string) string {
	return strings.TrimPrefix(path.Join(folder, name), "/")
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
