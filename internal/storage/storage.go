// Package storage provides the object store abstraction the upload pipeline
// writes through. The S3 implementation is the production backend; a local
// filesystem implementation backs development and tests.
package storage

import (
	"context"
	"path/filepath"
	"time"
)

// MetadataSource tags every uploaded object with the service that produced it.
const MetadataSource = "pixlift"

// MultipartThreshold is the file size above which uploads switch to
// multipart transfers.
const MultipartThreshold int64 = 5 * 1024 * 1024

// PutRequest describes one object upload.
type PutRequest struct {
	// LocalPath is the file to upload.
	LocalPath string
	// Key is the destination object key.
	Key string
	// ContentType overrides content-type detection when non-empty.
	ContentType string
	// Metadata is caller-supplied object metadata, merged over the standard
	// provenance set. Caller values win on key collision.
	Metadata map[string]string
	// PublicRead marks the object publicly readable.
	PublicRead bool
}

// PutResult reports a completed upload.
type PutResult struct {
	URL         string
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is the storage backend consumed by the upload pipeline.
type ObjectStore interface {
	// Put uploads a local file and returns its public URL and final metadata.
	Put(ctx context.Context, req PutRequest) (PutResult, error)

	// ListBuckets returns the names of all accessible buckets.
	ListBuckets(ctx context.Context) ([]string, error)

	// Ping verifies the configured bucket is reachable.
	Ping(ctx context.Context) error

	// Bucket returns the configured bucket name.
	Bucket() string

	// Region returns the active region, or an empty string when the backend
	// has no notion of regions.
	Region() string
}

// buildMetadata merges caller metadata over the standard provenance set.
// Caller values win on collision.
func buildMetadata(localPath string, caller map[string]string, now time.Time) map[string]string {
	meta := map[string]string{
		"uploaded_at":       now.UTC().Format(time.RFC3339),
		"original_filename": filepath.Base(localPath),
		"source":            MetadataSource,
	}
	for k, v := range caller {
		meta[k] = v
	}
	return meta
}
