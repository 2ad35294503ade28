// Package storage stages uploaded statement files in object storage so the
// API can hand them to the worker by URI instead of by value.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// BlobStore stages statement bytes between upload and ingestion.
type BlobStore interface {
	// Upload writes the object and returns its URI.
	Upload(ctx context.Context, objectName string, contentType string, data []byte) (string, error)

	// Fetch reads the object bytes behind a URI previously returned by
	// Upload.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// SplitURI splits "gs://bucket/path/to/object" into bucket and object path.
func SplitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("SplitURI: invalid storage URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("SplitURI: no object path in URI: %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the base filename from a storage URI,
// e.g. "gs://bucket/folder/file.pdf" yields "file.pdf".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
