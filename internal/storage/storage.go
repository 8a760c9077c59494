package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("object not found")

// IStorage stores uploaded vehicle images.
type IStorage interface {
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	// URL is the public address stored on the vehicle record.
	URL(key string) string
	// KeyFor reverses URL. It reports false for addresses this storage did not issue.
	KeyFor(url string) (string, bool)
}

// Upload is an image received from a client, not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ValidateImage checks the declared content type and size of an upload.
func ValidateImage(u Upload, maxSizeMB int) error {
	if _, ok := allowedImageTypes[u.ContentType]; !ok {
		return fmt.Errorf("unsupported image type %q for %s", u.ContentType, u.Filename)
	}
	if maxSizeMB > 0 && u.Size > int64(maxSizeMB)*1024*1024 {
		return fmt.Errorf("image %s exceeds %d MB", u.Filename, maxSizeMB)
	}
	return nil
}

// VehicleImageKey builds a collision-free key under the seller's folder.
// The client file name is discarded apart from choosing an extension.
func VehicleImageKey(sellerID, contentType string) string {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		ext = ".bin"
	}
	return path.Join("vehicles", sellerID, uuid.NewString()+ext)
}

// KeyFromURL reverses URL for a storage whose URLs start with prefix.
func KeyFromURL(prefix, url string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// New builds the backend selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (IStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return NewS3Storage(ctx, cfg)
	default:
		return NewLocalStorage(cfg.UploadsDir, cfg.UploadsURLPrefix)
	}
}
