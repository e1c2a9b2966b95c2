// Package storage archives benchmark reports as objects, backed by either
// the local filesystem or Tencent COS. The harness writes compressed report
// payloads under "reports/<run-uuid>" keys.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/global-done/pkg/config"
)

// Storage is the object store the benchmark harness uploads reports to.
type Storage interface {
	// Upload writes the reader's contents under key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile copies a local file under key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download opens the object under key. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadFile copies the object under key to localPath.
	DownloadFile(ctx context.Context, key string, localPath string) error

	// Delete removes the object under key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns where the object under key can be fetched from.
	GetURL(key string) string
}

// StorageType names a storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage builds the backend named by cfg.Type. An empty type means
// local storage.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	if StorageType(cfg.Type) == StorageTypeCOS {
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	}
	return NewLocalStorage(cfg.LocalPath)
}

// ValidateConfig rejects configs that NewStorage could not act on.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}

	storageType := StorageType(cfg.Type)
	if storageType == "" {
		storageType = StorageTypeLocal
	}

	switch storageType {
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	case StorageTypeLocal:
		if cfg.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	return nil
}
