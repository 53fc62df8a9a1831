package imageproc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/pixlift/pixlift/internal/errors"
)

// Request describes a single optimize operation. Zero values for Quality,
// MaxWidth, and MaxHeight take the package defaults. OutputPath is derived
// from SourcePath when empty.
type Request struct {
	SourcePath  string
	OutputPath  string
	Quality     int
	MaxWidth    int
	MaxHeight   int
	ConvertJPEG bool
}

// Result reports where the optimized image landed and the byte sizes on both
// sides of the transform.
type Result struct {
	OutputPath string
	SizeBefore int64
	SizeAfter  int64
}

// Optimizer performs single-image optimization: recompression, downscale-only
// resize, and optional conversion to JPEG.
type Optimizer struct {
	maxWidth  int
	maxHeight int
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithBounds overrides the default resize bounds applied when a request
// leaves them zero. Non-positive values are ignored.
func WithBounds(maxWidth, maxHeight int) OptimizerOption {
	return func(o *Optimizer) {
		if maxWidth > 0 {
			o.maxWidth = maxWidth
		}
		if maxHeight > 0 {
			o.maxHeight = maxHeight
		}
	}
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{
		maxWidth:  DefaultMaxWidth,
		maxHeight: DefaultMaxHeight,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize transforms one image according to req. EXIF orientation is folded
// into pixel data during decode, so the output displays correctly without
// orientation metadata.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if !IsSupported(req.SourcePath) {
		return Result{}, errors.NewUnsupportedFormat(NormalizeExt(req.SourcePath))
	}

	stat, err := os.Stat(req.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errors.NewNotFound(req.SourcePath)
		}
		return Result{}, errors.NewTransformError(fmt.Sprintf("stat %s", req.SourcePath), err)
	}
	sizeBefore := stat.Size()

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = DeriveOutputPath(req.SourcePath, req.ConvertJPEG)
	}
	if !CanEncode(outputPath) {
		return Result{}, errors.New(errors.ErrCategoryTransform, errors.CodeEncodeUnsupported,
			fmt.Sprintf("cannot encode %s output", NormalizeExt(outputPath)))
	}

	quality := req.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	maxWidth := req.MaxWidth
	if maxWidth == 0 {
		maxWidth = o.maxWidth
	}
	maxHeight := req.MaxHeight
	if maxHeight == 0 {
		maxHeight = o.maxHeight
	}

	img, err := imaging.Open(req.SourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, errors.NewTransformError(fmt.Sprintf("decode %s", req.SourcePath), err)
	}

	img = downscale(img, maxWidth, maxHeight)

	if req.ConvertJPEG && hasAlpha(img) {
		img = flattenOntoWhite(img)
	}

	if err := imaging.Save(img, outputPath, imaging.JPEGQuality(quality)); err != nil {
		return Result{}, errors.NewTransformError(fmt.Sprintf("encode %s", outputPath), err)
	}

	outStat, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, errors.NewTransformError(fmt.Sprintf("stat output %s", outputPath), err)
	}

	return Result{
		OutputPath: outputPath,
		SizeBefore: sizeBefore,
		SizeAfter:  outStat.Size(),
	}, nil
}

// DeriveOutputPath returns the default output path for a source: the same
// base with a .jpg extension when converting, otherwise
// <name>.optimized<ext> beside the source.
func DeriveOutputPath(sourcePath string, convertJPEG bool) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(sourcePath, ext)
	if convertJPEG {
		return base + ".jpg"
	}
	return base + ".optimized" + ext
}

// downscale resizes img to fit within maxWidth x maxHeight, preserving aspect
// ratio. Images already inside the bounds are returned untouched; nothing is
// ever upscaled.
func downscale(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	ratio := float64(maxWidth) / float64(w)
	if r := float64(maxHeight) / float64(h); r < ratio {
		ratio = r
	}
	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)

	return imaging.Resize(img, newW, newH, imaging.Lanczos)
}

// flattenOntoWhite composites an image with transparency onto an opaque white
// background, for encoding into formats without an alpha channel.
func flattenOntoWhite(img image.Image) image.Image {
	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// hasAlpha reports whether any pixel in img is not fully opaque.
func hasAlpha(img image.Image) bool {
	if op, ok := img.(interface{ Opaque() bool }); ok {
		return !op.Opaque()
	}
	switch img.ColorModel() {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	return false
}
