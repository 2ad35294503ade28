package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a map-backed BlobStore for single-instance deployments and
// tests. Its URIs use the same gs:// shape as the GCS store so the two are
// interchangeable behind the interface.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

// NewMemory creates an in-memory blob store with a synthetic bucket name.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string][]byte)}
}

// Upload implements BlobStore.
func (m *Memory) Upload(_ context.Context, objectName, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[objectName] = buf

	return fmt.Sprintf("gs://%s/%s", m.bucket, objectName), nil
}

// Fetch implements BlobStore.
func (m *Memory) Fetch(_ context.Context, uri string) ([]byte, error) {
	_, object, err := SplitURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[object]
	if !ok {
		return nil, fmt.Errorf("Fetch: object not found: %s", uri)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

var _ BlobStore = (*Memory)(nil)
