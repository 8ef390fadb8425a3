package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStorage is a FileStorage kept in process memory. Presigned URLs point at a
// fake host; tests call PutObject to simulate the client's upload.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]ObjectMetadata
	deleted []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]ObjectMetadata)}
}

// PutObject records an object as uploaded.
func (m *MemoryStorage) PutObject(objectKey, contentType string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey] = ObjectMetadata{Size: size, ContentType: contentType, LastModified: time.Now().UTC()}
}

// Has reports whether the object exists.
func (m *MemoryStorage) Has(objectKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectKey]
	return ok
}

// Deleted returns the keys passed to DeleteObject, in call order.
func (m *MemoryStorage) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *MemoryStorage) GeneratePresignedUploadURL(_ context.Context, objectKey, contentType string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	return fmt.Sprintf("https://storage.invalid/%s?method=PUT&content-type=%s&expires=%d",
		objectKey, url.QueryEscape(contentType), int(expires.Seconds())), nil
}

func (m *MemoryStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	return fmt.Sprintf("https://storage.invalid/%s?method=GET&expires=%d", objectKey, int(expires.Seconds())), nil
}

func (m *MemoryStorage) DeleteObject(_ context.Context, objectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey)
	m.deleted = append(m.deleted, objectKey)
	return nil
}

func (m *MemoryStorage) GetObjectMetadata(_ context.Context, objectKey string) (*ObjectMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.objects[objectKey]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &meta, nil
}
