package processor

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/session"
	"github.com/leeforge/imgsqueeze/testkit"
)

func sourceImage(t *testing.T, name, mimeType string, w, h int, size int64) session.SourceImage {
	t.Helper()
	return session.SourceImage{
		ID:      uuid.NewString(),
		Name:    name,
		Size:    size,
		Type:    mimeType,
		Width:   w,
		Height:  h,
		Surface: testkit.Gradient(w, h),
	}
}

func settings(quality float64, maxWidth int, format string) codec.Settings {
	return codec.Settings{Quality: quality, MaxWidth: maxWidth, OutputFormat: format}
}

// recordingEncoder remembers the quality it was last handed.
type recordingEncoder struct {
	mimeType string
	calls    int
	quality  *float64
	fail     bool
}

func (e *recordingEncoder) MIMEType() string  { return e.mimeType }
func (e *recordingEncoder) Extension() string { return codec.Extension(e.mimeType) }
func (e *recordingEncoder) Lossless() bool    { return e.mimeType == codec.MIMEPNG }

func (e *recordingEncoder) Encode(w io.Writer, _ image.Image, quality *float64) error {
	e.calls++
	e.quality = quality
	if e.fail {
		return errors.New("encoder gave up")
	}
	_, err := w.Write([]byte("encoded"))
	return err
}

func recordingRegistry() (*codec.Registry, map[string]*recordingEncoder) {
	r := codec.NewRegistry()
	encs := map[string]*recordingEncoder{}
	for _, mt := range codec.AcceptedTypes {
		enc := &recordingEncoder{mimeType: mt}
		encs[mt] = enc
		r.Register(enc)
	}
	return r, encs
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name           string
		w, h, maxWidth int
		wantW, wantH   int
	}{
		{"unset", 2000, 1000, 0, 2000, 1000},
		{"narrower than max", 800, 600, 1000, 800, 600},
		{"equal to max", 1000, 333, 1000, 1000, 333},
		{"halved", 2000, 1000, 1000, 1000, 500},
		{"rounds half up", 4, 3, 2, 2, 2},
		{"rounds down", 3, 2, 2, 2, 1},
		{"height collapses", 1000, 1, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.w, tt.h, tt.maxWidth)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestNativeRasterizer(t *testing.T) {
	r := NewNativeRasterizer()
	src := testkit.Gradient(40, 20)

	out, err := r.Rasterize(src, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())

	same, err := r.Rasterize(src, 40, 20)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), same.Bounds())

	_, err = r.Rasterize(src, 10, 0)
	assert.Error(t, err)
}

func TestCompressAllDownscalesJPEG(t *testing.T) {
	p := NewPipeline(logging.NewNop())
	img := sourceImage(t, "photo.jpg", codec.MIMEJPEG, 2000, 1000, 5_000_000)

	batch, err := p.CompressAll(testkit.Context(t), []session.SourceImage{img}, settings(0.5, 1000, codec.OutputFormatAuto))
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	require.Empty(t, batch.Failures)

	r := batch.Results[0]
	assert.Equal(t, img.ID, r.ID)
	assert.Equal(t, 1000, r.Width)
	assert.Equal(t, 500, r.Height)
	assert.Equal(t, codec.MIMEJPEG, r.Type)
	assert.Equal(t, "photo.jpg", r.OutputName)
	assert.Less(t, r.OutputSize, r.OriginalSize)
	assert.EqualValues(t, len(r.Data), r.OutputSize)

	decoded, err := codec.NewDecoder().Decode(r.OutputName, r.Type, r.Data)
	require.NoError(t, err)
	assert.Equal(t, 1000, decoded.Width)
	assert.Equal(t, 500, decoded.Height)
}

func TestCompressAllPNGToWebP(t *testing.T) {
	p := NewPipeline(logging.NewNop())
	img := sourceImage(t, "diagram.png", codec.MIMEPNG, 64, 48, 20_000)

	batch, err := p.CompressAll(testkit.Context(t), []session.SourceImage{img}, settings(0.7, 0, codec.MIMEWebP))
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)

	r := batch.Results[0]
	assert.Equal(t, "diagram.webp", r.OutputName)
	assert.Equal(t, codec.MIMEWebP, r.Type)
	assert.Equal(t, 64, r.Width)
	assert.Equal(t, 48, r.Height)
}

func TestCompressAllQualityPolicy(t *testing.T) {
	reg, encs := recordingRegistry()
	p := NewPipeline(logging.NewNop(), WithRegistry(reg))
	ctx := testkit.Context(t)

	png := sourceImage(t, "a.png", codec.MIMEPNG, 8, 8, 100)
	jpg := sourceImage(t, "b.jpg", codec.MIMEJPEG, 8, 8, 100)

	_, err := p.CompressAll(ctx, []session.SourceImage{png, jpg}, settings(0.3, 0, codec.OutputFormatAuto))
	require.NoError(t, err)
	assert.Nil(t, encs[codec.MIMEPNG].quality)
	require.NotNil(t, encs[codec.MIMEJPEG].quality)
	assert.Equal(t, 0.3, *encs[codec.MIMEJPEG].quality)

	_, err = p.CompressAll(ctx, []session.SourceImage{jpg}, settings(0.9, 0, codec.MIMEPNG))
	require.NoError(t, err)
	assert.Nil(t, encs[codec.MIMEPNG].quality, "png output never receives a quality")

	_, err = p.CompressAll(ctx, []session.SourceImage{png}, settings(0.6, 0, codec.MIMEWebP))
	require.NoError(t, err)
	require.NotNil(t, encs[codec.MIMEWebP].quality)
	assert.Equal(t, 0.6, *encs[codec.MIMEWebP].quality)
}

func TestCompressAllSkipsFailures(t *testing.T) {
	reg, encs := recordingRegistry()
	encs[codec.MIMEPNG].fail = true
	mock := testkit.NewMockLogger()
	p := NewPipeline(mock.Logger(), WithRegistry(reg))

	images := []session.SourceImage{
		sourceImage(t, "one.jpg", codec.MIMEJPEG, 8, 8, 100),
		sourceImage(t, "two.png", codec.MIMEPNG, 8, 8, 100),
		sourceImage(t, "three.webp", codec.MIMEWebP, 8, 8, 100),
	}

	batch, err := p.CompressAll(testkit.Context(t), images, settings(0.8, 0, codec.OutputFormatAuto))
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, images[0].ID, batch.Results[0].ID)
	assert.Equal(t, images[2].ID, batch.Results[1].ID)

	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "two.png", batch.Failures[0].File)
	assert.True(t, apperrors.IsType(batch.Failures[0].Err, apperrors.ErrorTypeEncodeFailure))

	entries := mock.FindEntry("image compression failed")
	require.Len(t, entries, 1)
	assert.Equal(t, batch.ID, entries[0].ContextMap()["batch_id"])
	assert.Equal(t, images[1].ID, entries[0].ContextMap()["image_id"])
}

func TestCompressAllZeroHeightIsEncodeFailure(t *testing.T) {
	p := NewPipeline(logging.NewNop())
	img := sourceImage(t, "strip.png", codec.MIMEPNG, 1000, 1, 100)

	batch, err := p.CompressAll(testkit.Context(t), []session.SourceImage{img}, settings(0.8, 10, codec.OutputFormatAuto))
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	require.Len(t, batch.Failures, 1)
	assert.True(t, apperrors.IsType(batch.Failures[0].Err, apperrors.ErrorTypeEncodeFailure))
}

func TestCompressAllReleasedSurface(t *testing.T) {
	p := NewPipeline(logging.NewNop())
	img := sourceImage(t, "gone.png", codec.MIMEPNG, 4, 4, 100)
	img.Surface = nil

	batch, err := p.CompressAll(testkit.Context(t), []session.SourceImage{img}, codec.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, batch.Failures, 1)
}

// cancellingRasterizer cancels the batch after the first image.
type cancellingRasterizer struct {
	cancel context.CancelFunc
}

func (r cancellingRasterizer) Rasterize(src image.Image, _, _ int) (image.Image, error) {
	r.cancel()
	return src, nil
}

func TestCompressAllCancellationReturnsPartialBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(testkit.Context(t))
	reg, _ := recordingRegistry()
	p := NewPipeline(logging.NewNop(), WithRegistry(reg), WithRasterizer(cancellingRasterizer{cancel: cancel}))

	images := []session.SourceImage{
		sourceImage(t, "a.jpg", codec.MIMEJPEG, 4, 4, 100),
		sourceImage(t, "b.jpg", codec.MIMEJPEG, 4, 4, 100),
	}

	batch, err := p.CompressAll(ctx, images, codec.DefaultSettings())
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, images[0].ID, batch.Results[0].ID)
}

func TestCompressAllEmpty(t *testing.T) {
	batch, err := NewPipeline(nil).CompressAll(testkit.Context(t), nil, codec.DefaultSettings())
	require.NoError(t, err)
	assert.Empty(t, batch.Results)

	_, ok := batch.Summary()
	assert.False(t, ok)
}
