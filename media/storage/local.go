package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// LocalProvider saves files into a directory, like a browser download folder.
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath string) (*LocalProvider, error) {
	if basePath == "" {
		basePath = "."
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, apperrors.NewStorage("mkdir", err).WithDetail("path", basePath)
	}
	return &LocalProvider{basePath: basePath}, nil
}

// BasePath returns the target directory.
func (p *LocalProvider) BasePath() string {
	return p.basePath
}

// Upload writes the file. When the name is taken the first free
// "name (n).ext" is used instead.
func (p *LocalProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	dir := filepath.Join(p.basePath, input.Folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return UploadOutput{}, apperrors.NewStorage("mkdir", err).WithDetail("path", dir)
	}

	dst, name, err := p.create(ctx, dir, input.Filename)
	if err != nil {
		return UploadOutput{}, err
	}
	size, err := io.Copy(dst, input.File)
	if err == nil {
		err = dst.Sync()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// A partial file would keep its name slot taken.
		os.Remove(dst.Name())
		return UploadOutput{}, apperrors.NewStorage("write", err).WithDetail("file", dst.Name())
	}

	return UploadOutput{
		URL:      dst.Name(),
		Filename: name,
		Size:     size,
		Metadata: input.Metadata,
	}, nil
}

// create opens the first free candidate name with O_EXCL.
func (p *LocalProvider) create(ctx context.Context, dir, filename string) (*os.File, string, error) {
	for n := 0; n < maxRenameAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		name := CandidateName(filename, n)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", apperrors.NewStorage("create", err).WithDetail("file", name)
		}
	}
	return nil, "", apperrors.NewStorage("rename", fmt.Errorf("no free name for %s", filename))
}

// Exists checks if a file exists
func (p *LocalProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(p.basePath, path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (p *LocalProvider) Name() string {
	return TypeLocal
}
