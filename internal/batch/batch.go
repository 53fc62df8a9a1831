// Package batch implements the two-phase upload pipeline: filter the request,
// optimize the survivors under a concurrency cap, re-key, upload under the
// same cap, and aggregate per-item results back onto the original request
// order. One item's failure never drops or corrupts another's result.
package batch

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/runner"
	"github.com/pixlift/pixlift/internal/storage"
)

// Optimizer is the transform collaborator.
type Optimizer interface {
	Optimize(ctx context.Context, req imageproc.Request) (imageproc.Result, error)
}

// Uploader is the storage collaborator.
type Uploader interface {
	Put(ctx context.Context, req storage.PutRequest) (storage.PutResult, error)
}

// Orchestrator runs batch uploads against injected collaborators.
type Orchestrator struct {
	optimizer Optimizer
	uploader  Uploader
	keygen    *keys.Generator
	log       zerolog.Logger
}

// New creates an Orchestrator.
func New(optimizer Optimizer, uploader Uploader, keygen *keys.Generator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		optimizer: optimizer,
		uploader:  uploader,
		keygen:    keygen,
		log:       log,
	}
}

// Request describes one batch upload call.
type Request struct {
	FilePaths     []string
	FolderPrefix  string
	Optimize      bool
	Quality       int
	MaxConcurrent int
	// MaxFileSize caps per-file size during filtering. Zero disables the
	// check.
	MaxFileSize int64
}

// ItemResult is the per-item detail entry, aligned to the original request
// ordinal.
type ItemResult struct {
	FilePath string `json:"file_path"`
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	Key      string `json:"key,omitempty"`
	Error    string `json:"error,omitempty"`

	// Size and ContentType describe the stored object; they feed the upload
	// ledger and are not part of the wire shape.
	Size        int64  `json:"-"`
	ContentType string `json:"-"`
}

// Result aggregates a batch call. Results always has one entry per original
// file path, successes and failures combined.
type Result struct {
	Success           bool
	BatchID           string
	URLs              []string
	Errors            []string
	TotalFiles        int
	SuccessfulUploads int
	FailedUploads     int
	OptimizationStats *Stats
	Results           []ItemResult
}

// workItem tracks one surviving file across phases. Ordinal is the position
// in the original request; Working is the path the next phase consumes, which
// the optimize phase may repoint at a transient artifact.
type workItem struct {
	Ordinal  int
	Original string
	Working  string
}

// Run executes the batch pipeline. Per-item failures are collected, never
// propagated; the only error-free guarantee callers rely on is that the
// detail list covers every requested file.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	total := len(req.FilePaths)
	details := make([]ItemResult, total)
	for i, path := range req.FilePaths {
		details[i] = ItemResult{FilePath: path}
	}

	var errs []string
	survivors := o.filter(req, details, &errs)

	if len(survivors) == 0 {
		return Result{
			Success:       false,
			Errors:        errs,
			TotalFiles:    total,
			FailedUploads: total,
			Results:       details,
		}
	}

	var stats *Stats
	var transient []string
	if req.Optimize {
		survivors, stats, transient = o.optimizePhase(ctx, req, survivors, details, &errs)
	}

	batchID := uuid.New().String()
	uploaded := o.uploadPhase(ctx, req, batchID, survivors, details, &errs)
	o.cleanup(transient)

	var urls []string
	for _, d := range details {
		if d.Success {
			urls = append(urls, d.URL)
		}
	}

	return Result{
		Success:           uploaded > 0,
		BatchID:           batchID,
		URLs:              urls,
		Errors:            errs,
		TotalFiles:        total,
		SuccessfulUploads: uploaded,
		FailedUploads:     total - uploaded,
		OptimizationStats: stats,
		Results:           details,
	}
}

// filter drops missing, unsupported, and oversized files up front, recording
// each as a pre-emptive failure.
func (o *Orchestrator) filter(req Request, details []ItemResult, errs *[]string) []workItem {
	var survivors []workItem
	for i, path := range req.FilePaths {
		stat, err := os.Stat(path)
		if err != nil {
			o.fail(details, errs, i, fmt.Sprintf("File not found: %s", path))
			continue
		}
		if !imageproc.IsSupported(path) {
			o.fail(details, errs, i, fmt.Sprintf("Unsupported format %s: %s", imageproc.NormalizeExt(path), path))
			continue
		}
		if req.MaxFileSize > 0 && stat.Size() > req.MaxFileSize {
			o.fail(details, errs, i, fmt.Sprintf("File too large: %s is %d bytes, limit %d", path, stat.Size(), req.MaxFileSize))
			continue
		}
		survivors = append(survivors, workItem{Ordinal: i, Original: path, Working: path})
	}
	return survivors
}

func (o *Orchestrator) fail(details []ItemResult, errs *[]string, ordinal int, msg string) {
	details[ordinal].Error = msg
	*errs = append(*errs, msg)
}

// optimizePhase runs the transform unit over the survivors through the
// bounded runner. Failures exclude the item from upload; a fault of the whole
// phase falls back to the unoptimized survivors. The returned transient list
// holds every artifact the phase produced at a path differing from its
// original, whether or not its upload later succeeds.
func (o *Orchestrator) optimizePhase(ctx context.Context, req Request, survivors []workItem, details []ItemResult, errs *[]string) (kept []workItem, stats *Stats, transient []string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Warn().Interface("fault", r).Msg("batch optimization failed, using original files")
			kept, stats, transient = survivors, nil, nil
		}
	}()

	items := make([]runner.Item, len(survivors))
	for i, s := range survivors {
		items[i] = runner.Item{Ref: s.Working, Ordinal: s.Ordinal}
	}

	outcomes := runner.Run(ctx, items, req.MaxConcurrent, func(ctx context.Context, item runner.Item) runner.Outcome {
		res, err := o.optimizer.Optimize(ctx, imageproc.Request{
			SourcePath: item.Ref,
			Quality:    req.Quality,
		})
		if err != nil {
			return runner.Outcome{Source: item.Ref, Err: err}
		}
		return runner.Outcome{
			Ref:        res.OutputPath,
			Source:     item.Ref,
			SizeBefore: res.SizeBefore,
			SizeAfter:  res.SizeAfter,
		}
	})

	st := ComputeStats(outcomes)
	stats = &st

	for i, out := range outcomes {
		s := survivors[i]
		if !out.Success() {
			o.fail(details, errs, s.Ordinal, fmt.Sprintf("Optimization failed for %s: %v", s.Original, out.Err))
			continue
		}
		s.Working = out.Ref
		if s.Working != s.Original {
			transient = append(transient, s.Working)
		}
		kept = append(kept, s)
	}

	o.log.Info().
		Int("optimized", len(kept)).
		Int("failed", len(survivors)-len(kept)).
		Float64("compression_ratio", st.CompressionRatio).
		Msg("optimization phase complete")

	return kept, stats, transient
}

// uploadPhase derives keys and uploads the survivors through the bounded
// runner, filling in per-item details. Returns the successful upload count.
func (o *Orchestrator) uploadPhase(ctx context.Context, req Request, batchID string, survivors []workItem, details []ItemResult, errs *[]string) int {
	if len(survivors) == 0 {
		return 0
	}

	uploadKeys := make([]string, len(survivors))
	items := make([]runner.Item, len(survivors))
	putResults := make([]storage.PutResult, len(survivors))
	byOrdinal := make(map[int]int, len(survivors))
	for i, s := range survivors {
		uploadKeys[i] = o.keygen.Generate(s.Working, req.FolderPrefix)
		items[i] = runner.Item{Ref: s.Working, Ordinal: s.Ordinal}
		byOrdinal[s.Ordinal] = i
	}

	outcomes := runner.Run(ctx, items, req.MaxConcurrent, func(ctx context.Context, item runner.Item) runner.Outcome {
		// survivors[i] and items[i] stay index-aligned; recover i by ordinal.
		i := byOrdinal[item.Ordinal]
		s := survivors[i]

		res, err := o.uploader.Put(ctx, storage.PutRequest{
			LocalPath: s.Working,
			Key:       uploadKeys[i],
			Metadata: map[string]string{
				"original_file": s.Original,
				"optimized":     strconv.FormatBool(req.Optimize),
				"quality":       strconv.Itoa(req.Quality),
				"batch_index":   strconv.Itoa(s.Ordinal),
				"batch_id":      batchID,
			},
			PublicRead: true,
		})
		if err != nil {
			return runner.Outcome{Source: s.Working, Err: err}
		}
		// Each item writes its own index, so no lock is needed.
		putResults[i] = res
		return runner.Outcome{Ref: res.URL, Source: s.Working, SizeAfter: res.Size}
	})

	uploaded := 0
	for i, out := range outcomes {
		s := survivors[i]
		if !out.Success() {
			o.fail(details, errs, s.Ordinal, fmt.Sprintf("Upload failed for %s: %v", s.Original, out.Err))
			continue
		}
		details[s.Ordinal].Success = true
		details[s.Ordinal].URL = out.Ref
		details[s.Ordinal].Key = uploadKeys[i]
		details[s.Ordinal].Size = putResults[i].Size
		details[s.Ordinal].ContentType = putResults[i].ContentType
		uploaded++
	}

	return uploaded
}

// cleanup removes transient optimize artifacts, once each. Failures are
// logged, never propagated.
func (o *Orchestrator) cleanup(transient []string) {
	for _, path := range transient {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			o.log.Warn().Err(err).Str("path", path).Msg("failed to clean up temporary file")
		}
	}
}
