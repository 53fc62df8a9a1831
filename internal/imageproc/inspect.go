package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/pixlift/pixlift/internal/errors"
)

// Info describes an image file without fully decoding it.
type Info struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	HasAlpha  bool   `json:"has_alpha"`
}

// Inspect reads an image header and returns its dimensions, format, and file
// size. Only the header is decoded, so this stays cheap for large files.
func Inspect(path string) (Info, error) {
	if !IsSupported(path) {
		return Info{}, errors.NewUnsupportedFormat(NormalizeExt(path))
	}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, errors.NewNotFound(path)
		}
		return Info{}, errors.NewTransformError(fmt.Sprintf("stat %s", path), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.NewTransformError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, errors.NewTransformError(fmt.Sprintf("decode header of %s", path), err)
	}

	return Info{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		SizeBytes: stat.Size(),
		HasAlpha:  configHasAlpha(cfg),
	}, nil
}

// configHasAlpha reports whether the decoded color model carries an alpha
// channel. This is a model-level check; an RGBA image that happens to be
// fully opaque still reports true.
func configHasAlpha(cfg image.Config) bool {
	switch cfg.ColorModel {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	return false
}
