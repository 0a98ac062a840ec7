package codec

import (
	"image"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// defaultWebPQuality matches the canvas default of 0.80.
const defaultWebPQuality = 80

// WebPEncoder encodes lossy WebP through libwebp.
type WebPEncoder struct{}

func (e *WebPEncoder) MIMEType() string  { return MIMEWebP }
func (e *WebPEncoder) Extension() string { return "webp" }
func (e *WebPEncoder) Lossless() bool    { return false }

func (e *WebPEncoder) Encode(w io.Writer, img image.Image, quality *float64) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(percent(quality, defaultWebPQuality)))
	if err != nil {
		return err
	}
	return webp.Encode(w, img, options)
}
