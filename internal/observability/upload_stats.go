// Package observability tracks in-process upload counters surfaced through
// the get_server_info tool.
package observability

import (
	"sync"
	"time"
)

// UploadStats accumulates upload counters for the lifetime of the process.
// All methods are safe for concurrent use.
type UploadStats struct {
	mu               sync.RWMutex
	uploadsCompleted int64
	uploadsFailed    int64
	bytesUploaded    int64
	bytesSaved       int64
	lastUploadAt     time.Time
}

// NewUploadStats creates an empty stats tracker.
func NewUploadStats() *UploadStats {
	return &UploadStats{}
}

// RecordUpload records one successful upload of size bytes.
func (s *UploadStats) RecordUpload(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadsCompleted++
	s.bytesUploaded += size
	s.lastUploadAt = time.Now()
}

// RecordFailure records one failed upload attempt.
func (s *UploadStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadsFailed++
}

// RecordSavings records bytes saved by an optimization phase.
func (s *UploadStats) RecordSavings(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesSaved += bytes
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UploadsCompleted int64
	UploadsFailed    int64
	BytesUploaded    int64
	BytesSaved       int64
	LastUploadAt     time.Time
}

// Snapshot returns a copy of the current counters.
func (s *UploadStats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		UploadsCompleted: s.uploadsCompleted,
		UploadsFailed:    s.uploadsFailed,
		BytesUploaded:    s.bytesUploaded,
		BytesSaved:       s.bytesSaved,
		LastUploadAt:     s.lastUploadAt,
	}
}
