package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pixlift/pixlift/internal/errors"
)

// LocalStore implements ObjectStore on the local filesystem. It exists for
// development and tests; objects land under basePath and URLs use the file
// scheme.
type LocalStore struct {
	basePath string
	bucket   string
	now      func() time.Time

	mu       sync.RWMutex
	metadata map[string]map[string]string
}

// NewLocalStore creates a local store rooted at basePath. The bucket name is
// only used in reporting; all objects live directly under basePath. An empty
// bucket defaults to "local" so bucket resolution keeps working without S3
// configuration.
func NewLocalStore(basePath, bucket string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if bucket == "" {
		bucket = "local"
	}
	return &LocalStore{
		basePath: basePath,
		bucket:   bucket,
		now:      time.Now,
		metadata: make(map[string]map[string]string),
	}, nil
}

// Bucket returns the reported bucket name.
func (l *LocalStore) Bucket() string { return l.bucket }

// Region returns an empty string; the local store has no regions.
func (l *LocalStore) Region() string { return "" }

// Ping verifies the base directory is writable.
func (l *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe := filepath.Join(l.basePath, ".pixlift-ping")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return errors.NewStorageError(errors.CodeBucketUnreachable,
			fmt.Sprintf("base path %s is not writable", l.basePath), err)
	}
	_ = os.Remove(probe)
	return nil
}

// Put copies a local file under the store's base path.
func (l *LocalStore) Put(ctx context.Context, req PutRequest) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	stat, err := os.Stat(req.LocalPath)
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("stat %s", req.LocalPath), err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(req.LocalPath)
	}
	metadata := buildMetadata(req.LocalPath, req.Metadata, l.now())

	destPath := filepath.Join(l.basePath, filepath.FromSlash(req.Key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("create directories for %s", req.Key), err)
	}

	src, err := os.Open(req.LocalPath)
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("open %s", req.LocalPath), err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("create %s", destPath), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return PutResult{}, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("copy to %s", destPath), err)
	}

	l.mu.Lock()
	l.metadata[req.Key] = metadata
	l.mu.Unlock()

	return PutResult{
		URL:         "file://" + destPath,
		Key:         req.Key,
		Size:        stat.Size(),
		ContentType: contentType,
		Metadata:    metadata,
	}, nil
}

// ListBuckets returns the single configured bucket name.
func (l *LocalStore) ListBuckets(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{l.bucket}, nil
}

// Metadata returns the metadata recorded for a stored key.
func (l *LocalStore) Metadata(key string) (map[string]string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.metadata[key]
	return m, ok
}

// ObjectPath returns the filesystem path for a stored key.
func (l *LocalStore) ObjectPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

var _ ObjectStore = (*LocalStore)(nil)
