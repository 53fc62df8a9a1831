// Package integration provides end-to-end tests of the pixlift upload
// pipeline against local object storage.
package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/ledger"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/service"
	"github.com/pixlift/pixlift/internal/storage"
	"github.com/pixlift/pixlift/pkg/api"
)

type env struct {
	svc   *service.Service
	store *storage.LocalStore
	led   *ledger.SQLiteLedger
	dir   string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "objects"), "test-bucket")
	require.NoError(t, err)

	led, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	svc := service.New(store, imageproc.NewOptimizer(), keys.NewGenerator(),
		observability.NewUploadStats(), led, zerolog.Nop())

	return &env{svc: svc, store: store, led: led, dir: dir}
}

// writePNG writes a small solid-color PNG and returns its path.
func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xCC
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// writeNoisyJPEG writes a large high-entropy JPEG that recompression at a
// lower quality will actually shrink.
func writeNoisyJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 98}))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func optimizeOff() *bool { v := false; return &v }
func optimizeOn() *bool  { v := true; return &v }

func TestUploadWithoutOptimizationRoundTrips(t *testing.T) {
	e := newEnv(t)
	src := writePNG(t, e.dir, "logo.png")

	resp := e.svc.Upload(context.Background(), api.UploadRequest{
		FilePath:     src,
		Optimize:     optimizeOff(),
		FolderPrefix: "assets",
	})
	require.True(t, resp.Success, "upload failed: %s", resp.Error)

	assert.True(t, strings.HasPrefix(resp.Key, "assets/logo_"), "key = %s", resp.Key)
	assert.True(t, strings.HasSuffix(resp.Key, ".png"), "key = %s", resp.Key)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, "test-bucket", resp.Bucket)

	// The stored object must be byte-identical to the source.
	want, err := os.ReadFile(src)
	require.NoError(t, err)
	got, err := os.ReadFile(e.store.ObjectPath(resp.Key))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	meta, ok := e.store.Metadata(resp.Key)
	require.True(t, ok)
	assert.Equal(t, "pixlift", meta["source"])
	assert.Equal(t, "logo.png", meta["original_filename"])
	assert.Equal(t, "false", meta["optimized"])
	assert.NotEmpty(t, meta["uploaded_at"])
}

func TestUploadOptimizedShrinksAndCleansUp(t *testing.T) {
	e := newEnv(t)
	src := writeNoisyJPEG(t, e.dir, "photo.jpg", 2400, 1400)

	srcStat, err := os.Stat(src)
	require.NoError(t, err)

	resp := e.svc.Upload(context.Background(), api.UploadRequest{
		FilePath: src,
		Optimize: optimizeOn(),
		Quality:  60,
	})
	require.True(t, resp.Success, "upload failed: %s", resp.Error)

	assert.Less(t, resp.Size, srcStat.Size(), "optimized upload should be smaller")

	// The intermediate optimized file must not survive the upload.
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".optimized", "transient file left behind")
	}

	// The source file stays untouched.
	after, err := os.Stat(src)
	require.NoError(t, err)
	assert.Equal(t, srcStat.Size(), after.Size())
}

func TestUploadRejectsUnsupportedAndMissingFiles(t *testing.T) {
	e := newEnv(t)

	resp := e.svc.Upload(context.Background(), api.UploadRequest{
		FilePath: filepath.Join(e.dir, "nope.png"),
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")

	txt := filepath.Join(e.dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))
	resp = e.svc.Upload(context.Background(), api.UploadRequest{FilePath: txt})
	assert.False(t, resp.Success)
	assert.Contains(t, strings.ToLower(resp.Error), "unsupported")
}

func TestBatchUploadMixedOutcomes(t *testing.T) {
	e := newEnv(t)
	good1 := writePNG(t, e.dir, "a.png")
	good2 := writePNG(t, e.dir, "b.png")
	missing := filepath.Join(e.dir, "missing.png")
	txt := filepath.Join(e.dir, "doc.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))

	resp := e.svc.BatchUpload(context.Background(), api.BatchUploadRequest{
		FilePaths: []string{good1, missing, good2, txt},
		Optimize:  optimizeOff(),
	})

	assert.True(t, resp.Success, "batch with some successes reports success")
	assert.Equal(t, 4, resp.TotalFiles)
	assert.Equal(t, 2, resp.SuccessfulUploads)
	assert.Equal(t, 2, resp.FailedUploads)
	assert.Len(t, resp.URLs, 2)
	assert.Len(t, resp.Errors, 2)

	// Detail list stays aligned with the request order.
	require.Len(t, resp.Results, 4)
	assert.Equal(t, good1, resp.Results[0].FilePath)
	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, missing, resp.Results[1].FilePath)
	assert.False(t, resp.Results[1].Success)
	assert.True(t, resp.Results[2].Success)
	assert.False(t, resp.Results[3].Success)

	// batch_index metadata carries the position in the original request.
	meta, ok := e.store.Metadata(resp.Results[2].Key)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(2), meta["batch_index"])
	assert.NotEmpty(t, meta["batch_id"])

	meta0, ok := e.store.Metadata(resp.Results[0].Key)
	require.True(t, ok)
	assert.Equal(t, meta0["batch_id"], meta["batch_id"], "one batch id for the whole batch")
}

func TestBatchUploadAllInvalid(t *testing.T) {
	e := newEnv(t)

	resp := e.svc.BatchUpload(context.Background(), api.BatchUploadRequest{
		FilePaths: []string{
			filepath.Join(e.dir, "ghost1.png"),
			filepath.Join(e.dir, "ghost2.png"),
		},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.TotalFiles)
	assert.Equal(t, 0, resp.SuccessfulUploads)
	assert.Equal(t, 2, resp.FailedUploads)
	assert.Len(t, resp.Results, 2)
}

func TestLedgerRecordsCompletedUploads(t *testing.T) {
	e := newEnv(t)
	src1 := writePNG(t, e.dir, "one.png")
	src2 := writePNG(t, e.dir, "two.png")

	r1 := e.svc.Upload(context.Background(), api.UploadRequest{FilePath: src1, Optimize: optimizeOff()})
	require.True(t, r1.Success)
	r2 := e.svc.Upload(context.Background(), api.UploadRequest{FilePath: src2, Optimize: optimizeOff()})
	require.True(t, r2.Success)

	totals, err := e.led.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Uploads)
	assert.Equal(t, r1.Size+r2.Size, totals.Bytes)

	recent, err := e.led.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, r2.Key, recent[0].Key, "newest first")
}

func TestServerInfoReflectsActivity(t *testing.T) {
	e := newEnv(t)
	src := writePNG(t, e.dir, "pic.png")

	resp := e.svc.Upload(context.Background(), api.UploadRequest{FilePath: src, Optimize: optimizeOff()})
	require.True(t, resp.Success)

	info := e.svc.ServerInfo(context.Background())
	assert.Equal(t, service.Name, info.Name)
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, int64(1), info.UploadsCompleted)
	assert.Equal(t, resp.Size, info.BytesUploaded)
	assert.Contains(t, info.SupportedFormats, ".png")
}
