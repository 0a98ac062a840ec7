package codec

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// Decoded is a pixel surface with its intrinsic dimensions.
type Decoded struct {
	Surface image.Image
	Width   int
	Height  int
	// Format is the container actually found in the bytes ("jpeg", "png", "webp").
	Format string
}

// Decoder validates and decodes uploaded files.
type Decoder struct {
	maxSize int64
}

// NewDecoder creates a Decoder enforcing MaxFileSize.
func NewDecoder() *Decoder {
	return &Decoder{maxSize: MaxFileSize}
}

// MaxSize returns the size limit in bytes.
func (d *Decoder) MaxSize() int64 {
	return d.maxSize
}

// Validate applies the type and size gates. It runs before any bytes are decoded.
func (d *Decoder) Validate(name, mimeType string, size int64) error {
	if !IsAccepted(mimeType) {
		return apperrors.NewUnsupportedType(name, mimeType)
	}
	if size > d.maxSize {
		return apperrors.NewOversizeFile(name, size, d.maxSize)
	}
	return nil
}

// Decode validates the file and decodes it. The container is sniffed from the
// bytes rather than trusted from mimeType. A JPEG EXIF orientation is applied,
// so the surface and dimensions are as displayed, not as stored.
func (d *Decoder) Decode(name, mimeType string, data []byte) (Decoded, error) {
	if err := d.Validate(name, mimeType, int64(len(data))); err != nil {
		return Decoded{}, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, apperrors.NewDecodeFailure(name, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Decoded{}, apperrors.NewDecodeFailure(name, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Decoded{}, apperrors.NewDecodeFailure(name, nil).
			WithDetail("width", bounds.Dx()).
			WithDetail("height", bounds.Dy())
	}

	return Decoded{
		Surface: img,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Format:  format,
	}, nil
}
