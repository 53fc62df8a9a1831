package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/storage"
)

type mockOptimizer struct {
	fn func(ctx context.Context, req imageproc.Request) (imageproc.Result, error)
}

func (m *mockOptimizer) Optimize(ctx context.Context, req imageproc.Request) (imageproc.Result, error) {
	return m.fn(ctx, req)
}

type mockUploader struct {
	mu    sync.Mutex
	calls []storage.PutRequest
	fn    func(ctx context.Context, req storage.PutRequest) (storage.PutResult, error)
}

func (m *mockUploader) Put(ctx context.Context, req storage.PutRequest) (storage.PutResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.fn(ctx, req)
}

func (m *mockUploader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// okUploader returns a PutResult with a URL derived from the key.
func okUploader() *mockUploader {
	return &mockUploader{
		fn: func(_ context.Context, req storage.PutRequest) (storage.PutResult, error) {
			return storage.PutResult{
				URL:  "https://bucket.s3.us-east-1.amazonaws.com/" + req.Key,
				Key:  req.Key,
				Size: 100,
			}, nil
		},
	}
}

// passthroughOptimizer reports the source file as already optimized.
func passthroughOptimizer() *mockOptimizer {
	return &mockOptimizer{
		fn: func(_ context.Context, req imageproc.Request) (imageproc.Result, error) {
			return imageproc.Result{OutputPath: req.SourcePath, SizeBefore: 1000, SizeAfter: 500}, nil
		},
	}
}

func makeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("image-bytes"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}
	return paths
}

func newOrchestrator(opt Optimizer, up Uploader) *Orchestrator {
	gen := keys.NewGeneratorWithClock(func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	})
	return New(opt, up, gen, zerolog.Nop())
}

func TestRun_DetailListCoversAllItems(t *testing.T) {
	paths := makeFiles(t, "a.png", "b.png")
	all := []string{paths[0], "/tmp/missing-no.png", paths[1], "/tmp/readme.txt"}

	o := newOrchestrator(passthroughOptimizer(), okUploader())
	res := o.Run(context.Background(), Request{
		FilePaths:     all,
		Optimize:      true,
		Quality:       80,
		MaxConcurrent: 2,
	})

	if len(res.Results) != len(all) {
		t.Fatalf("detail list must cover every input: got %d, want %d", len(res.Results), len(all))
	}
	for i, d := range res.Results {
		if d.FilePath != all[i] {
			t.Errorf("result %d not aligned to original ordinal: got %s, want %s", i, d.FilePath, all[i])
		}
	}
	if !res.Results[0].Success || !res.Results[2].Success {
		t.Error("valid files should succeed")
	}
	if res.Results[1].Success || res.Results[3].Success {
		t.Error("filtered files must be recorded as failures")
	}
	if res.TotalFiles != 4 || res.SuccessfulUploads != 2 || res.FailedUploads != 2 {
		t.Errorf("unexpected counts: total=%d ok=%d failed=%d", res.TotalFiles, res.SuccessfulUploads, res.FailedUploads)
	}
}

func TestRun_SingleFailureLeavesSiblingsAlone(t *testing.T) {
	paths := makeFiles(t, "a.png", "b.png", "c.png", "d.png", "e.png")

	up := &mockUploader{
		fn: func(_ context.Context, req storage.PutRequest) (storage.PutResult, error) {
			if req.Metadata["batch_index"] == "2" {
				return storage.PutResult{}, fmt.Errorf("simulated storage outage")
			}
			return storage.PutResult{URL: "https://x/" + req.Key, Key: req.Key}, nil
		},
	}

	o := newOrchestrator(passthroughOptimizer(), up)
	res := o.Run(context.Background(), Request{FilePaths: paths, MaxConcurrent: 3})

	if res.SuccessfulUploads != 4 || res.FailedUploads != 1 {
		t.Errorf("expected 4 successes and 1 failure, got %d/%d", res.SuccessfulUploads, res.FailedUploads)
	}
	if res.Results[2].Success {
		t.Error("failing item should be recorded as failed")
	}
	if !res.Success {
		t.Error("partial success must count as overall success")
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected exactly one recorded error, got %v", res.Errors)
	}
}

func TestRun_ZeroSurvivorsShortCircuits(t *testing.T) {
	opt := &mockOptimizer{fn: func(context.Context, imageproc.Request) (imageproc.Result, error) {
		panic("optimizer must not run when nothing survives filtering")
	}}
	up := &mockUploader{fn: func(context.Context, storage.PutRequest) (storage.PutResult, error) {
		panic("uploader must not run when nothing survives filtering")
	}}

	o := newOrchestrator(opt, up)
	res := o.Run(context.Background(), Request{
		FilePaths:     []string{"/tmp/a-missing.png", "/tmp/b-missing.png"},
		Optimize:      true,
		MaxConcurrent: 2,
	})

	if res.Success {
		t.Error("all-filtered batch must not report success")
	}
	if res.FailedUploads != 2 || res.SuccessfulUploads != 0 {
		t.Errorf("unexpected counts: ok=%d failed=%d", res.SuccessfulUploads, res.FailedUploads)
	}
	if up.callCount() != 0 {
		t.Error("uploader was called despite short circuit")
	}
	if len(res.Results) != 2 {
		t.Errorf("detail list must still cover all items, got %d", len(res.Results))
	}
}

func TestRun_OptimizeFailureExcludesItem(t *testing.T) {
	paths := makeFiles(t, "good.png", "bad.png", "fine.png")

	opt := &mockOptimizer{fn: func(_ context.Context, req imageproc.Request) (imageproc.Result, error) {
		if filepath.Base(req.SourcePath) == "bad.png" {
			return imageproc.Result{}, fmt.Errorf("decode error")
		}
		return imageproc.Result{OutputPath: req.SourcePath, SizeBefore: 10, SizeAfter: 5}, nil
	}}
	up := okUploader()

	o := newOrchestrator(opt, up)
	res := o.Run(context.Background(), Request{
		FilePaths:     paths,
		Optimize:      true,
		Quality:       80,
		MaxConcurrent: 2,
	})

	// The batch path excludes an optimize failure from upload entirely; it
	// does not fall back to the original file the way the single path does.
	if up.callCount() != 2 {
		t.Errorf("expected 2 uploads, got %d", up.callCount())
	}
	if res.SuccessfulUploads != 2 || res.FailedUploads != 1 {
		t.Errorf("unexpected counts: ok=%d failed=%d", res.SuccessfulUploads, res.FailedUploads)
	}
	if res.Results[1].Success {
		t.Error("optimize-failed item must appear as a failure in details")
	}
	if res.OptimizationStats == nil || res.OptimizationStats.Failed != 1 {
		t.Errorf("optimization stats should record the failure: %+v", res.OptimizationStats)
	}
}

func TestRun_BatchIndexIsOriginalOrdinal(t *testing.T) {
	paths := makeFiles(t, "b.png", "c.png")
	all := []string{"/tmp/gone-first.png", paths[0], paths[1]}

	up := okUploader()
	o := newOrchestrator(passthroughOptimizer(), up)
	o.Run(context.Background(), Request{FilePaths: all, MaxConcurrent: 1})

	seen := map[string]bool{}
	up.mu.Lock()
	for _, call := range up.calls {
		seen[call.Metadata["batch_index"]] = true
		if call.Metadata["batch_id"] == "" {
			t.Error("batch_id metadata missing")
		}
	}
	up.mu.Unlock()

	// The first file was filtered out, so the survivors keep ordinals 1 and 2.
	if !seen["1"] || !seen["2"] || seen["0"] {
		t.Errorf("batch_index must track original ordinals, got %v", seen)
	}
}

func TestRun_ResultsAlignedWhenOrdinalsShiftFromIndexes(t *testing.T) {
	// Filtered leading items shift survivor ordinals away from their slice
	// indexes; every result must still land on its own file.
	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("img%d.png", i)
	}
	paths := makeFiles(t, names...)
	all := []string{"/tmp/gone-a.png", "/tmp/gone-b.png"}
	all = append(all, paths...)

	o := newOrchestrator(passthroughOptimizer(), okUploader())
	res := o.Run(context.Background(), Request{
		FilePaths:     all,
		Optimize:      true,
		Quality:       80,
		MaxConcurrent: 4,
	})

	if res.SuccessfulUploads != len(paths) {
		t.Fatalf("successful = %d, want %d", res.SuccessfulUploads, len(paths))
	}
	for i := 2; i < len(all); i++ {
		d := res.Results[i]
		if !d.Success {
			t.Errorf("result %d failed: %s", i, d.Error)
			continue
		}
		base := filepath.Base(all[i])
		wantKey := base[:len(base)-len(".png")] + "_20240102_030405.png"
		if d.Key != wantKey {
			t.Errorf("result %d key = %s, want %s", i, d.Key, wantKey)
		}
		if d.URL != "https://bucket.s3.us-east-1.amazonaws.com/"+wantKey {
			t.Errorf("result %d URL cross-wired: %s", i, d.URL)
		}
	}
}

func TestRun_TransientArtifactsCleanedUp(t *testing.T) {
	paths := makeFiles(t, "a.png", "b.png")

	opt := &mockOptimizer{fn: func(_ context.Context, req imageproc.Request) (imageproc.Result, error) {
		out := imageproc.DeriveOutputPath(req.SourcePath, false)
		if err := os.WriteFile(out, []byte("optimized"), 0644); err != nil {
			return imageproc.Result{}, err
		}
		return imageproc.Result{OutputPath: out, SizeBefore: 11, SizeAfter: 9}, nil
	}}

	// One upload fails; cleanup must still remove both artifacts.
	calls := 0
	var mu sync.Mutex
	up := &mockUploader{fn: func(_ context.Context, req storage.PutRequest) (storage.PutResult, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return storage.PutResult{}, fmt.Errorf("first upload fails")
		}
		return storage.PutResult{URL: "https://x/" + req.Key, Key: req.Key}, nil
	}}

	o := newOrchestrator(opt, up)
	o.Run(context.Background(), Request{FilePaths: paths, Optimize: true, MaxConcurrent: 1})

	for _, p := range paths {
		if _, err := os.Stat(imageproc.DeriveOutputPath(p, false)); !os.IsNotExist(err) {
			t.Errorf("transient artifact %s should be removed regardless of upload outcome", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("original file %s must survive cleanup: %v", p, err)
		}
	}
}

func TestRun_NoOptimizeUploadsOriginal(t *testing.T) {
	paths := makeFiles(t, "raw.png")

	opt := &mockOptimizer{fn: func(context.Context, imageproc.Request) (imageproc.Result, error) {
		panic("optimizer must not run with optimize disabled")
	}}
	up := okUploader()

	o := newOrchestrator(opt, up)
	res := o.Run(context.Background(), Request{FilePaths: paths, Optimize: false, MaxConcurrent: 1})

	if !res.Success {
		t.Fatalf("expected success, errors: %v", res.Errors)
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.calls[0].LocalPath != paths[0] {
		t.Errorf("upload should use the original path, got %s", up.calls[0].LocalPath)
	}
	if res.OptimizationStats != nil {
		t.Error("no optimization stats expected when optimization is off")
	}
}

func TestRun_OversizedFileFiltered(t *testing.T) {
	paths := makeFiles(t, "big.png", "small.png")

	o := newOrchestrator(passthroughOptimizer(), okUploader())
	res := o.Run(context.Background(), Request{
		FilePaths:     paths,
		MaxConcurrent: 1,
		MaxFileSize:   5, // both test files are 11 bytes
	})

	if res.SuccessfulUploads != 0 {
		t.Errorf("oversized files should all be filtered, got %d uploads", res.SuccessfulUploads)
	}
}
