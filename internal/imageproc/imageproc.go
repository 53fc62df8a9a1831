// Package imageproc implements the image transform unit: recompression,
// aspect-preserving downscale, and optional conversion to JPEG, with EXIF
// orientation folded into pixel data.
//
// Decoding is delegated to disintegration/imaging, which in turn uses the
// image decoders registered with the standard library. The blank import below
// adds WebP decode support; there is no WebP encoder, so WebP sources can be
// converted but not re-encoded in place. SVG passes the format gate (it is an
// accepted upload format) but cannot be decoded, so optimizing an SVG always
// reports a transform fault, which callers resolve by falling back to the
// original file or excluding the item.
package imageproc

import (
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// Transform defaults applied when a request leaves the field zero.
const (
	DefaultQuality   = 80
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
)

// supportedExts is the accepted source extension set. The gate runs before
// any decode attempt.
var supportedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".svg":  true,
}

// encodableExts are the extensions the encoder can write back.
var encodableExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

// IsSupported reports whether the file's extension is an accepted source
// format.
func IsSupported(path string) bool {
	return supportedExts[NormalizeExt(path)]
}

// CanEncode reports whether the file's extension can be re-encoded in place.
func CanEncode(path string) bool {
	return encodableExts[NormalizeExt(path)]
}

// SupportedFormats returns the accepted extensions in stable order, without
// leading dots, for reporting in server info.
func SupportedFormats() []string {
	return []string{"png", "jpg", "jpeg", "gif", "webp", "bmp", "tiff", "svg"}
}

// NormalizeExt returns the lowercased extension of path, including the dot.
func NormalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
