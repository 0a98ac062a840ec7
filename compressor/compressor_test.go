package compressor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/testkit"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]events.Event
}

func (r *recorder) handler(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.Name] = append(r.events[e.Name], e)
	return nil
}

func (r *recorder) get(topic string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events[topic]...)
}

type fixture struct {
	c      *Compressor
	bus    events.Bus
	events *recorder
	dir    string
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()

	dir := t.TempDir()
	sink, err := storage.NewLocalProvider(dir)
	require.NoError(t, err)

	bus := events.NewBus(64, nil)
	rec := &recorder{events: map[string][]events.Event{}}
	for _, topic := range []string{
		events.TopicImageAdded, events.TopicImageRejected, events.TopicImageRemoved,
		events.TopicSessionCleared, events.TopicCompressStarted, events.TopicCompressFailed,
		events.TopicCompressCompleted, events.TopicResultSaved,
	} {
		bus.Subscribe(topic, rec.handler)
	}

	c, err := New(Options{
		Workers:       2,
		DownloadDelay: delay,
		Sink:          sink,
		Bus:           bus,
	})
	require.NoError(t, err)

	f := &fixture{c: c, bus: bus, events: rec, dir: dir}
	t.Cleanup(func() { bus.Close() })
	return f
}

// flush waits for every published event to reach the recorder.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.bus.Close())
}

func TestIngestAcceptsAndRejects(t *testing.T) {
	f := newFixture(t, 0)

	report, err := f.c.Ingest(testkit.Context(t), []FileInput{
		{Name: "ok.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 20, 10)},
		{Name: "anim.gif", Type: "image/gif", Data: []byte("GIF89a")},
		{Name: "huge.jpg", Type: codec.MIMEJPEG, Size: 25_000_000, Data: []byte{0xff}},
		{Name: "broken.webp", Type: codec.MIMEWebP, Data: []byte("RIFF....WEBPjunk")},
		{Name: "ok.jpg", Type: codec.MIMEJPEG, Data: testkit.JPEG(t, 30, 15, 90)},
	})
	require.NoError(t, err)

	assert.Len(t, report.Added, 2)
	require.Len(t, report.Rejected, 3)
	assert.Equal(t, "anim.gif", report.Rejected[0].File)
	assert.Equal(t, apperrors.ErrorTypeUnsupportedType, report.Rejected[0].Kind)
	assert.Equal(t, "huge.jpg", report.Rejected[1].File)
	assert.Equal(t, apperrors.ErrorTypeOversizeFile, report.Rejected[1].Kind)
	assert.Equal(t, "broken.webp", report.Rejected[2].File)
	assert.Equal(t, apperrors.ErrorTypeDecodeFailure, report.Rejected[2].Kind)

	images := f.c.Images()
	require.Len(t, images, 2)
	ids := []string{images[0].ID, images[1].ID}
	assert.ElementsMatch(t, report.Added, ids)

	for _, img := range images {
		switch img.Name {
		case "ok.png":
			assert.Equal(t, 20, img.Width)
			assert.Equal(t, 10, img.Height)
		case "ok.jpg":
			assert.Equal(t, 30, img.Width)
			assert.Equal(t, 15, img.Height)
		default:
			t.Fatalf("unexpected image %s", img.Name)
		}
	}

	f.flush(t)
	assert.Len(t, f.events.get(events.TopicImageAdded), 2)
	assert.Len(t, f.events.get(events.TopicImageRejected), 3)
}

func TestOversizeFileNeverProducesResult(t *testing.T) {
	f := newFixture(t, 0)

	report, err := f.c.Ingest(testkit.Context(t), []FileInput{
		{Name: "big.jpg", Type: codec.MIMEJPEG, Size: 25 * 1000 * 1000, Data: testkit.JPEG(t, 8, 8, 90)},
	})
	require.NoError(t, err)

	assert.Empty(t, report.Added)
	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Message, "big.jpg")
	assert.Equal(t, 0, len(f.c.Images()))

	batch, err := f.c.CompressAll(testkit.Context(t))
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Empty(t, f.c.Results())
}

func TestCompressAllStoresResultsWithPreviews(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	_, err := f.c.Ingest(ctx, []FileInput{
		{Name: "wide.jpg", Type: codec.MIMEJPEG, Size: 5_000_000, Data: testkit.JPEG(t, 400, 200, 95)},
	})
	require.NoError(t, err)

	require.NoError(t, f.c.UpdateSettings(codec.Settings{Quality: 0.5, MaxWidth: 200, OutputFormat: codec.OutputFormatAuto}))

	batch, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)

	r := batch.Results[0]
	assert.Equal(t, 200, r.Width)
	assert.Equal(t, 100, r.Height)
	assert.Equal(t, "wide.jpg", r.OutputName)
	assert.Equal(t, codec.MIMEJPEG, r.Type)
	assert.Less(t, r.OutputSize, r.OriginalSize)

	blob, ok := f.c.Preview(r.PreviewRef)
	require.True(t, ok)
	assert.Equal(t, r.Data, blob.Data)

	summary, ok := f.c.Summary()
	require.True(t, ok)
	assert.EqualValues(t, 5_000_000, summary.TotalOriginal)
	assert.Equal(t, r.OutputSize, summary.TotalOutput)

	f.flush(t)
	assert.Len(t, f.events.get(events.TopicCompressStarted), 1)
	assert.Len(t, f.events.get(events.TopicCompressCompleted), 1)
}

func TestCompressAllReadsSettingsAtInvocation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	_, err := f.c.Ingest(ctx, []FileInput{{Name: "a.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 16, 16)}})
	require.NoError(t, err)

	first, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.png", first.Results[0].OutputName)

	require.NoError(t, f.c.UpdateSettings(codec.Settings{Quality: 0.7, OutputFormat: codec.MIMEWebP}))
	second, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.webp", second.Results[0].OutputName)
	assert.Equal(t, codec.MIMEWebP, second.Results[0].Type)

	_, ok := f.c.Preview(first.Results[0].PreviewRef)
	assert.False(t, ok, "previews of replaced results are revoked")
}

func TestCompressAllPublishesFailures(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	_, err := f.c.Ingest(ctx, []FileInput{
		{Name: "strip.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 1000, 1)},
		{Name: "fine.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 40, 40)},
	})
	require.NoError(t, err)
	require.NoError(t, f.c.UpdateSettings(codec.Settings{Quality: 0.8, MaxWidth: 10, OutputFormat: codec.OutputFormatAuto}))

	batch, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "fine.png", batch.Results[0].OriginalName)
	require.Len(t, batch.Failures, 1)

	f.flush(t)
	failed := f.events.get(events.TopicCompressFailed)
	require.Len(t, failed, 1)
	n := failed[0].Data.(Notice)
	assert.Equal(t, "strip.png", n.File)
	assert.Equal(t, apperrors.ErrorTypeEncodeFailure, n.Kind)
}

func TestCompressAllEmptyIsNoop(t *testing.T) {
	f := newFixture(t, 0)

	batch, err := f.c.CompressAll(testkit.Context(t))
	require.NoError(t, err)
	assert.Empty(t, batch.ID)

	f.flush(t)
	assert.Empty(t, f.events.get(events.TopicCompressStarted))
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	report, err := f.c.Ingest(ctx, []FileInput{
		{Name: "a.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)},
		{Name: "b.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)},
	})
	require.NoError(t, err)
	require.Len(t, report.Added, 2)

	before := f.c.Images()
	assert.False(t, f.c.RemoveImage("missing"))
	assert.Equal(t, before, f.c.Images())

	assert.True(t, f.c.RemoveImage(report.Added[0]))
	assert.Len(t, f.c.Images(), 1)

	batch, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)

	f.c.ClearAll()
	assert.Empty(t, f.c.Images())
	assert.Empty(t, f.c.Results())
	_, ok := f.c.Preview(batch.Results[0].PreviewRef)
	assert.False(t, ok)
	_, ok = f.c.Summary()
	assert.False(t, ok)

	f.flush(t)
	assert.Len(t, f.events.get(events.TopicImageRemoved), 1)
	assert.Len(t, f.events.get(events.TopicSessionCleared), 1)
}

func TestUpdateSettingsValidates(t *testing.T) {
	f := newFixture(t, 0)

	err := f.c.UpdateSettings(codec.Settings{Quality: 2, OutputFormat: codec.OutputFormatAuto})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalid))
	assert.Equal(t, codec.DefaultSettings(), f.c.Settings())
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	_, err := New(Options{Settings: codec.Settings{Quality: 0.5, OutputFormat: "image/bmp"}})
	assert.Error(t, err)
}

func TestDownloadOne(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	_, err := f.c.DownloadOne(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = f.c.Ingest(ctx, []FileInput{{Name: "a.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)}})
	require.NoError(t, err)
	require.NoError(t, f.c.UpdateSettings(codec.Settings{Quality: 0.8, OutputFormat: codec.MIMEJPEG}))
	batch, err := f.c.CompressAll(ctx)
	require.NoError(t, err)

	out, err := f.c.DownloadOne(ctx, batch.Results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", out.Filename)

	data, err := os.ReadFile(filepath.Join(f.dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, batch.Results[0].Data, data)

	f.flush(t)
	assert.Len(t, f.events.get(events.TopicResultSaved), 1)
}

func TestDownloadAllIsSpacedAndRenames(t *testing.T) {
	delay := 60 * time.Millisecond
	f := newFixture(t, delay)
	ctx := testkit.Context(t)

	_, err := f.c.Ingest(ctx, []FileInput{
		{Name: "same.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)},
		{Name: "same.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 9, 9)},
		{Name: "same.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 10, 10)},
	})
	require.NoError(t, err)
	_, err = f.c.CompressAll(ctx)
	require.NoError(t, err)

	start := time.Now()
	saved, err := f.c.DownloadAll(ctx)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Len(t, saved, 3)

	assert.GreaterOrEqual(t, elapsed, 2*delay-10*time.Millisecond)

	var names []string
	for _, out := range saved {
		names = append(names, out.Filename)
	}
	assert.Equal(t, []string{"same.png", "same (1).png", "same (2).png"}, names)
}

func TestDownloadAllWithoutResults(t *testing.T) {
	f := newFixture(t, time.Second)

	saved, err := f.c.DownloadAll(testkit.Context(t))
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestDownloadAllCancelled(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := testkit.Context(t)

	_, err := f.c.Ingest(ctx, []FileInput{
		{Name: "a.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)},
		{Name: "b.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)},
	})
	require.NoError(t, err)
	_, err = f.c.CompressAll(ctx)
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	saved, err := f.c.DownloadAll(cctx)
	assert.Error(t, err)
	assert.Len(t, saved, 1, "the first save is immediate")
}

func TestDownloadWithoutSink(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)

	_, err = c.DownloadAll(testkit.Context(t))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestIngestCancelled(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(testkit.Context(t))
	cancel()

	report, err := f.c.Ingest(ctx, []FileInput{{Name: "a.png", Type: codec.MIMEPNG, Data: testkit.PNG(t, 8, 8)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Added)
}

func TestCompressAllResizesRotatedPhotoByDisplayedWidth(t *testing.T) {
	f := newFixture(t, 0)
	ctx := testkit.Context(t)

	// Stored 80x40, displayed 40x80.
	_, err := f.c.Ingest(ctx, []FileInput{
		{Name: "portrait.jpg", Type: codec.MIMEJPEG, Data: testkit.JPEGOriented(t, 80, 40, 6)},
	})
	require.NoError(t, err)

	images := f.c.Images()
	require.Len(t, images, 1)
	assert.Equal(t, 40, images[0].Width)
	assert.Equal(t, 80, images[0].Height)

	require.NoError(t, f.c.UpdateSettings(codec.Settings{Quality: 0.8, MaxWidth: 20, OutputFormat: codec.OutputFormatAuto}))
	batch, err := f.c.CompressAll(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, 20, batch.Results[0].Width)
	assert.Equal(t, 40, batch.Results[0].Height)
}
