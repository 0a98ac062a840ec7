package processor

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/leeforge/imgsqueeze/media/codec"
)

// TargetSize applies the max-width rule. A non-positive maxWidth, or a source
// no wider than it, keeps the source dimensions. Otherwise the width becomes
// maxWidth and the height is scaled and rounded once.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scale := float64(maxWidth) / float64(width)
	return maxWidth, codec.Round(float64(height) * scale)
}

// Rasterizer draws a surface at a target size.
type Rasterizer interface {
	Rasterize(src image.Image, width, height int) (image.Image, error)
}

// NativeRasterizer scales with nfnt/resize in pure Go.
type NativeRasterizer struct {
	interp resize.InterpolationFunction
}

// NewNativeRasterizer uses bilinear interpolation, the default canvas smoothing.
func NewNativeRasterizer() *NativeRasterizer {
	return &NativeRasterizer{interp: resize.Bilinear}
}

func (r *NativeRasterizer) Rasterize(src image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("cannot rasterize to %dx%d", width, height)
	}

	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src, nil
	}
	return resize.Resize(uint(width), uint(height), src, r.interp), nil
}
