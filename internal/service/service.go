// Package service implements the four pixlift operations behind the tool
// surface: single upload, batch upload, bucket listing, and server info.
// Collaborators are injected at construction; the service holds no mutable
// package state.
package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixlift/pixlift/internal/batch"
	"github.com/pixlift/pixlift/internal/errors"
	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/ledger"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/storage"
	"github.com/pixlift/pixlift/pkg/api"
)

// Service limits and defaults.
const (
	Name    = "pixlift"
	Version = "1.0.0"

	MaxFileSize          int64 = 100 * 1024 * 1024
	DefaultQuality             = 80
	DefaultConcurrency         = 5
	MaxConcurrencyLimit        = 10
)

// Service executes the tool operations against injected collaborators.
type Service struct {
	store     storage.ObjectStore
	optimizer batch.Optimizer
	keygen    *keys.Generator
	batches   *batch.Orchestrator
	stats     *observability.UploadStats
	ledger    ledger.Ledger // nil when the ledger is disabled
	log       zerolog.Logger

	defaultQuality int
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultQuality overrides the quality applied when a request leaves it
// zero. Values outside 1..100 are ignored.
func WithDefaultQuality(q int) Option {
	return func(s *Service) {
		if q >= 1 && q <= 100 {
			s.defaultQuality = q
		}
	}
}

// New creates a Service. The ledger may be nil.
func New(store storage.ObjectStore, optimizer batch.Optimizer, keygen *keys.Generator, stats *observability.UploadStats, led ledger.Ledger, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:          store,
		optimizer:      optimizer,
		keygen:         keygen,
		batches:        batch.New(optimizer, store, keygen, log),
		stats:          stats,
		ledger:         led,
		log:            log,
		defaultQuality: DefaultQuality,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveBucket validates the requested bucket against the configured store.
// An empty request bucket means "the configured one".
func (s *Service) resolveBucket(requested string) (string, error) {
	if s.store == nil {
		return "", errors.NewNotConfigured("object store")
	}
	configured := s.store.Bucket()
	if requested == "" {
		if configured == "" {
			return "", errors.NewValidationError("bucket name cannot be empty")
		}
		return configured, nil
	}
	if configured != "" && requested != configured {
		return "", errors.NewValidationError(
			fmt.Sprintf("bucket %q is not the configured bucket %q", requested, configured))
	}
	return requested, nil
}

func (s *Service) validQuality(q int) (int, error) {
	if q == 0 {
		return s.defaultQuality, nil
	}
	if q < 1 || q > 100 {
		return 0, errors.NewValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", q))
	}
	return q, nil
}

func optimizeFlag(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}

// Upload uploads a single image, optimizing it first unless disabled. An
// optimize failure falls back to the original file; only validation failures
// produce an error response without an upload attempt.
func (s *Service) Upload(ctx context.Context, req api.UploadRequest) api.UploadResponse {
	start := time.Now()
	fail := func(err error) api.UploadResponse {
		return api.UploadResponse{
			Success:        false,
			Error:          err.Error(),
			ProcessingTime: time.Since(start).Seconds(),
		}
	}

	if req.FilePath == "" {
		return fail(errors.NewValidationError("file path cannot be empty"))
	}
	quality, err := s.validQuality(req.Quality)
	if err != nil {
		return fail(err)
	}
	bucket, err := s.resolveBucket(req.BucketName)
	if err != nil {
		return fail(err)
	}
	if s.optimizer == nil {
		return fail(errors.NewNotConfigured("image optimizer"))
	}

	s.log.Info().Str("file", req.FilePath).Str("bucket", bucket).Msg("starting upload")

	stat, err := os.Stat(req.FilePath)
	if err != nil {
		return fail(errors.NewNotFound(req.FilePath))
	}
	if !imageproc.IsSupported(req.FilePath) {
		return fail(errors.NewUnsupportedFormat(imageproc.NormalizeExt(req.FilePath)))
	}
	if stat.Size() > MaxFileSize {
		return fail(errors.NewFileTooLarge(req.FilePath, stat.Size(), MaxFileSize))
	}

	optimize := optimizeFlag(req.Optimize)

	// The key comes from the requested path, not the optimize artifact, so
	// the object name matches what the caller uploaded. The batch path keys
	// from the processed file instead.
	key := req.Key
	if key == "" {
		key = s.keygen.Generate(req.FilePath, req.FolderPrefix)
	}

	// The single-upload path falls back to the original file when
	// optimization fails; the batch path instead excludes the item.
	workingPath := req.FilePath
	if optimize {
		res, optErr := s.optimizer.Optimize(ctx, imageproc.Request{
			SourcePath: req.FilePath,
			Quality:    quality,
		})
		if optErr != nil {
			s.log.Warn().Err(optErr).Str("file", req.FilePath).Msg("optimization failed, using original")
		} else {
			workingPath = res.OutputPath
		}
	}

	putRes, putErr := s.store.Put(ctx, storage.PutRequest{
		LocalPath: workingPath,
		Key:       key,
		Metadata: map[string]string{
			"original_file": req.FilePath,
			"optimized":     strconv.FormatBool(optimize),
			"quality":       strconv.Itoa(quality),
		},
		PublicRead: true,
	})

	if workingPath != req.FilePath {
		if rmErr := os.Remove(workingPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn().Err(rmErr).Str("path", workingPath).Msg("failed to clean up temporary file")
		}
	}

	if putErr != nil {
		s.log.Error().Err(putErr).Str("file", req.FilePath).Msg("upload failed")
		if s.stats != nil {
			s.stats.RecordFailure()
		}
		return fail(putErr)
	}

	s.recordUpload(ctx, ledger.Entry{
		Key:          putRes.Key,
		Bucket:       bucket,
		URL:          putRes.URL,
		OriginalPath: req.FilePath,
		Size:         putRes.Size,
		ContentType:  putRes.ContentType,
		Fingerprint:  ledger.Fingerprint(req.FilePath),
		Optimized:    optimize,
	})

	s.log.Info().Str("url", putRes.URL).Msg("upload successful")
	return api.UploadResponse{
		Success:        true,
		URL:            putRes.URL,
		Key:            putRes.Key,
		Bucket:         bucket,
		Size:           putRes.Size,
		ContentType:    putRes.ContentType,
		Metadata:       putRes.Metadata,
		ProcessingTime: time.Since(start).Seconds(),
	}
}

// BatchUpload uploads multiple images through the batch orchestrator.
func (s *Service) BatchUpload(ctx context.Context, req api.BatchUploadRequest) api.BatchUploadResponse {
	start := time.Now()
	fail := func(err error) api.BatchUploadResponse {
		return api.BatchUploadResponse{
			Success:        false,
			Errors:         []string{err.Error()},
			TotalFiles:     len(req.FilePaths),
			FailedUploads:  len(req.FilePaths),
			ProcessingTime: time.Since(start).Seconds(),
		}
	}

	if len(req.FilePaths) == 0 {
		return fail(errors.NewValidationError("file paths list cannot be empty"))
	}
	for _, p := range req.FilePaths {
		if p == "" {
			return fail(errors.NewValidationError("file path cannot be empty"))
		}
	}
	quality, err := s.validQuality(req.Quality)
	if err != nil {
		return fail(err)
	}
	concurrency := req.MaxConcurrent
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 || concurrency > MaxConcurrencyLimit {
		return fail(errors.NewValidationError(
			fmt.Sprintf("max_concurrent must be between 1 and %d, got %d", MaxConcurrencyLimit, concurrency)))
	}
	bucket, err := s.resolveBucket(req.BucketName)
	if err != nil {
		return fail(err)
	}
	if s.optimizer == nil {
		return fail(errors.NewNotConfigured("image optimizer"))
	}

	optimize := optimizeFlag(req.Optimize)
	s.log.Info().Int("files", len(req.FilePaths)).Str("bucket", bucket).Bool("optimize", optimize).Msg("starting batch upload")

	res := s.batches.Run(ctx, batch.Request{
		FilePaths:     req.FilePaths,
		FolderPrefix:  req.FolderPrefix,
		Optimize:      optimize,
		Quality:       quality,
		MaxConcurrent: concurrency,
		MaxFileSize:   MaxFileSize,
	})

	for _, d := range res.Results {
		if !d.Success {
			if s.stats != nil {
				s.stats.RecordFailure()
			}
			continue
		}
		s.recordUpload(ctx, ledger.Entry{
			Key:          d.Key,
			Bucket:       bucket,
			URL:          d.URL,
			OriginalPath: d.FilePath,
			Size:         d.Size,
			ContentType:  d.ContentType,
			Fingerprint:  ledger.Fingerprint(d.FilePath),
			Optimized:    optimize,
			BatchID:      res.BatchID,
		})
	}
	if s.stats != nil && res.OptimizationStats != nil {
		s.stats.RecordSavings(res.OptimizationStats.SpaceSaved)
	}

	s.log.Info().Int("successful", res.SuccessfulUploads).Int("failed", res.FailedUploads).Msg("batch upload complete")

	return api.BatchUploadResponse{
		Success:           res.Success,
		URLs:              res.URLs,
		Errors:            res.Errors,
		TotalFiles:        res.TotalFiles,
		SuccessfulUploads: res.SuccessfulUploads,
		FailedUploads:     res.FailedUploads,
		ProcessingTime:    time.Since(start).Seconds(),
		OptimizationStats: convertStats(res.OptimizationStats),
		Results:           convertResults(res.Results),
	}
}

// ListBuckets lists all buckets accessible with the configured credentials.
func (s *Service) ListBuckets(ctx context.Context) api.BucketListResponse {
	if s.store == nil {
		return api.BucketListResponse{
			Success: false,
			Error:   errors.NewNotConfigured("object store").Error(),
		}
	}

	buckets, err := s.store.ListBuckets(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list buckets")
		return api.BucketListResponse{Success: false, Error: err.Error()}
	}

	return api.BucketListResponse{
		Success: true,
		Buckets: buckets,
		Count:   len(buckets),
	}
}

// ServerInfo reports the service's identity, limits, and upload counters.
func (s *Service) ServerInfo(ctx context.Context) api.ServerInfo {
	info := api.ServerInfo{
		Name:                 Name,
		Version:              Version,
		Status:               "running",
		SupportedFormats:     imageproc.SupportedFormats(),
		MaxFileSize:          MaxFileSize,
		MaxConcurrentUploads: DefaultConcurrency,
	}
	if s.store != nil {
		info.AWSRegion = s.store.Region()
		info.BucketName = s.store.Bucket()
	} else {
		info.Status = "uninitialized"
	}

	if s.ledger != nil {
		if totals, err := s.ledger.Totals(ctx); err == nil {
			info.UploadsCompleted = totals.Uploads
			info.BytesUploaded = totals.Bytes
			return info
		}
	}
	if s.stats != nil {
		snap := s.stats.Snapshot()
		info.UploadsCompleted = snap.UploadsCompleted
		info.BytesUploaded = snap.BytesUploaded
	}
	return info
}

// recordUpload updates the in-memory counters and, when enabled, the ledger.
func (s *Service) recordUpload(ctx context.Context, e ledger.Entry) {
	if s.stats != nil {
		s.stats.RecordUpload(e.Size)
	}
	if s.ledger != nil {
		if err := s.ledger.Record(ctx, e); err != nil {
			s.log.Warn().Err(err).Str("key", e.Key).Msg("failed to record upload in ledger")
		}
	}
}

func convertStats(st *batch.Stats) *api.OptimizationStats {
	if st == nil {
		return nil
	}
	return &api.OptimizationStats{
		TotalFiles:         st.TotalFiles,
		Successful:         st.Successful,
		Failed:             st.Failed,
		TotalOriginalSize:  st.TotalOriginalSize,
		TotalOptimizedSize: st.TotalOptimizedSize,
		CompressionRatio:   st.CompressionRatio,
		SpaceSaved:         st.SpaceSaved,
	}
}

func convertResults(results []batch.ItemResult) []api.FileResult {
	out := make([]api.FileResult, len(results))
	for i, r := range results {
		out[i] = api.FileResult{
			FilePath: r.FilePath,
			Success:  r.Success,
			URL:      r.URL,
			Key:      r.Key,
			Error:    r.Error,
		}
	}
	return out
}
