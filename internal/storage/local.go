package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores objects as files below a base directory.
// The HTTP server exposes the directory under AssetsPath.
type LocalBackend struct {
	basePath string
	baseURL  string
}

// AssetsPath is the URL prefix local assets are served from
const AssetsPath = "/assets"

// NewLocalBackend creates a local filesystem backend
func NewLocalBackend(basePath, publicURL string) (*LocalBackend, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path %q: %w", basePath, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalBackend{
		basePath: abs,
		baseURL:  strings.TrimRight(publicURL, "/") + AssetsPath,
	}, nil
}

// Dir returns the absolute base directory
func (b *LocalBackend) Dir() string {
	return b.basePath
}

// Put writes an object to disk, replacing any existing file
func (b *LocalBackend) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	fullPath := filepath.Join(b.basePath, bucket, key)
	if !strings.HasPrefix(filepath.Clean(fullPath), b.basePath+string(os.PathSeparator)) {
		return fmt.Errorf("invalid object path: path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object is served under
func (b *LocalBackend) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", b.baseURL, bucket, key)
}
