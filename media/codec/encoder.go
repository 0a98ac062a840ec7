package codec

import (
	"bytes"
	"errors"
	"image"
	"io"
)

// ErrEmptyOutput is returned when an encoder produced no bytes.
var ErrEmptyOutput = errors.New("encoder produced no data")

// Encoder serializes a surface to one output format.
type Encoder interface {
	// MIMEType returns the type this encoder produces.
	MIMEType() string
	// Extension returns the file extension without dot.
	Extension() string
	// Lossless reports whether quality is ignored.
	Lossless() bool
	// Encode writes img to w. A nil quality selects the format default.
	Encode(w io.Writer, img image.Image, quality *float64) error
}

// EncodeToBytes runs enc into a buffer and rejects an empty result.
func EncodeToBytes(enc Encoder, img image.Image, quality *float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, quality); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyOutput
	}
	return buf.Bytes(), nil
}

// percent maps a [0,1] quality to 1..100, using def when quality is nil.
func percent(quality *float64, def int) int {
	if quality == nil {
		return def
	}
	q := Round(*quality * 100)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}
