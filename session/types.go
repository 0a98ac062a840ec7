package session

import (
	"image"

	"github.com/leeforge/imgsqueeze/media/codec"
)

// SourceImage is one accepted, decoded upload.
type SourceImage struct {
	ID   string
	Name string
	Size int64
	// Type is the declared MIME type.
	Type   string
	Width  int
	Height int
	// Surface is released when the image leaves the store.
	Surface image.Image
}

// CompressedResult is the pipeline output for one SourceImage, sharing its ID.
type CompressedResult struct {
	ID           string
	OriginalName string
	OutputName   string
	OriginalSize int64
	OutputSize   int64
	Width        int
	Height       int
	// Type is the concrete output MIME type, never "auto".
	Type string
	Data []byte
	// PreviewRef is set once the result is stored.
	PreviewRef string
}

// Saved returns the bytes saved; negative when the output grew.
func (r CompressedResult) Saved() int64 {
	return r.OriginalSize - r.OutputSize
}

// SavedPercent returns round(saved/original*100), or 0 for an empty original.
func (r CompressedResult) SavedPercent() int {
	if r.OriginalSize == 0 {
		return 0
	}
	return codec.Round(float64(r.Saved()) / float64(r.OriginalSize) * 100)
}
