package codec

import (
	"image"
	"image/png"
	"io"
)

// PNGEncoder encodes images to PNG. Quality is ignored.
type PNGEncoder struct {
	enc png.Encoder
}

func (e *PNGEncoder) MIMEType() string  { return MIMEPNG }
func (e *PNGEncoder) Extension() string { return "png" }
func (e *PNGEncoder) Lossless() bool    { return true }

func (e *PNGEncoder) Encode(w io.Writer, img image.Image, _ *float64) error {
	return e.enc.Encode(w, img)
}
