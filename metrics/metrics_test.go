package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imgsqueeze/compressor"
	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/processor"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/testkit"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.IncCounter("hits", nil)
	c.AddCounter("hits", 2, nil)
	c.IncCounter("hits", map[string]string{"kind": "a"})

	assert.Equal(t, 3.0, c.Value("hits", nil))
	assert.Equal(t, 1.0, c.Value("hits", map[string]string{"kind": "a"}))
	assert.Equal(t, 0.0, c.Value("missing", nil))
}

func TestCollectorLabelOrderDoesNotMatter(t *testing.T) {
	c := NewCollector()
	c.IncCounter("x", map[string]string{"a": "1", "b": "2"})
	c.IncCounter("x", map[string]string{"b": "2", "a": "1"})

	assert.Equal(t, 2.0, c.Value("x", map[string]string{"a": "1", "b": "2"}))
	assert.Len(t, c.Snapshot(), 1)
}

func TestCollectorGaugeAndHistogram(t *testing.T) {
	c := NewCollector()
	c.SetGauge("g", 5, nil)
	c.SetGauge("g", 2, nil)
	assert.Equal(t, 2.0, c.Value("g", nil))

	for i := 0; i < maxHistory+10; i++ {
		c.ObserveHistogram("h", float64(i), nil)
	}
	m := c.GetMetric("h", nil)
	require.NotNil(t, m)
	assert.Equal(t, TypeHistogram, m.Type)
	assert.Len(t, m.History, maxHistory)
	assert.Equal(t, float64(maxHistory+9), m.Value)
	assert.Equal(t, 10.0, m.History[0])
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.IncCounter("x", nil)
	c.Reset()
	assert.Empty(t, c.Snapshot())
}

func TestWriteText(t *testing.T) {
	c := NewCollector()
	c.AddCounter("b_total", 3, map[string]string{"kind": "oversize_file"})
	c.ObserveHistogram("a_hist", 10, nil)
	c.ObserveHistogram("a_hist", 20, nil)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Equal(t,
		"a_hist_avg 15.00\na_hist_count 2\nb_total{kind=\"oversize_file\"} 3.00\n",
		buf.String())
}

func TestRecorderCountsSessionEvents(t *testing.T) {
	ctx := testkit.Context(t)
	bus := events.NewBus(16, logging.NewNop())
	rec := NewRecorder(NewCollector(), bus)

	publish := func(topic string, data any) {
		require.NoError(t, bus.Publish(ctx, events.Event{Name: topic, Data: data}))
	}
	publish(events.TopicImageAdded, compressor.Notice{ID: "a"})
	publish(events.TopicImageAdded, compressor.Notice{ID: "b"})
	publish(events.TopicImageRejected, compressor.Notice{File: "x.pdf", Kind: apperrors.ErrorTypeUnsupportedType})
	publish(events.TopicCompressStarted, 2)
	publish(events.TopicCompressFailed, compressor.Notice{File: "b", Kind: apperrors.ErrorTypeEncodeFailure})
	publish(events.TopicCompressCompleted, processor.Summary{Count: 1, TotalOriginal: 1000, TotalOutput: 400, TotalSaved: 600, PercentSaved: 60})
	publish(events.TopicResultSaved, storage.UploadOutput{Size: 400})
	require.NoError(t, bus.Close())

	c := rec.Collector()
	assert.Equal(t, 2.0, c.Value(ImagesAdded, nil))
	assert.Equal(t, 1.0, c.Value(ImagesRejected, map[string]string{"kind": "unsupported_type"}))
	assert.Equal(t, 1.0, c.Value(BatchesStarted, nil))
	assert.Equal(t, 1.0, c.Value(CompressFailures, map[string]string{"kind": "encode_failure"}))
	assert.Equal(t, 1.0, c.Value(ImagesCompressed, nil))
	assert.Equal(t, 1000.0, c.Value(BytesOriginal, nil))
	assert.Equal(t, 400.0, c.Value(BytesOutput, nil))
	assert.Equal(t, 60.0, c.Value(BatchSaved, nil))
	assert.Equal(t, 1.0, c.Value(ResultsSaved, nil))
	assert.Equal(t, 400.0, c.Value(BytesWritten, nil))
}

func TestRecorderStop(t *testing.T) {
	ctx := testkit.Context(t)
	bus := events.NewBus(4, logging.NewNop())
	rec := NewRecorder(NewCollector(), bus)
	rec.Stop()

	require.NoError(t, bus.Publish(ctx, events.Event{Name: events.TopicImageAdded}))
	require.NoError(t, bus.Close())
	assert.Empty(t, rec.Collector().Snapshot())
}
