package codec

import (
	"image"
	"image/jpeg"
	"io"
)

// defaultJPEGQuality matches the canvas default of 0.92.
const defaultJPEGQuality = 92

// JPEGEncoder encodes images to JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) MIMEType() string  { return MIMEJPEG }
func (e *JPEGEncoder) Extension() string { return "jpg" }
func (e *JPEGEncoder) Lossless() bool    { return false }

func (e *JPEGEncoder) Encode(w io.Writer, img image.Image, quality *float64) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: percent(quality, defaultJPEGQuality)})
}
