package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider. Missing objects are not an error.
	DeleteObject(ctx context.Context, objectKey string) error

	// GetObjectMetadata returns ErrObjectNotFound until the client has finished uploading.
	GetObjectMetadata(ctx context.Context, objectKey string) (*ObjectMetadata, error)
}

// ObjectMetadata describes a stored object.
type ObjectMetadata struct {
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// Error constants for storage layer
var (
	ErrObjectNotFound = errors.New("object not found in storage")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
	"image/webp": ".webp",
}

// IsImageContentType reports whether progress photos may use the content type.
func IsImageContentType(contentType string) bool {
	_, ok := extensions[strings.ToLower(contentType)]
	return ok
}

// PhotoObjectKey builds the object key for a progress photo:
// progress-photos/<owner>/<photo><ext>.
func PhotoObjectKey(ownerID, photoID, contentType string) string {
	return path.Join("progress-photos", ownerID, photoID+extensions[strings.ToLower(contentType)])
}
