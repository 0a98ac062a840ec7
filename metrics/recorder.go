package metrics

import (
	"context"

	"github.com/leeforge/imgsqueeze/compressor"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/media/processor"
	"github.com/leeforge/imgsqueeze/media/storage"
)

// Series recorded from session events.
const (
	ImagesAdded      = "images_added_total"
	ImagesRejected   = "images_rejected_total"
	ImagesRemoved    = "images_removed_total"
	BatchesStarted   = "batches_started_total"
	ImagesCompressed = "images_compressed_total"
	CompressFailures = "compress_failures_total"
	BytesOriginal    = "bytes_original_total"
	BytesOutput      = "bytes_output_total"
	BatchSaved       = "batch_percent_saved"
	ResultsSaved     = "results_saved_total"
	BytesWritten     = "bytes_written_total"
)

// Recorder turns bus events into metrics.
type Recorder struct {
	collector *Collector
	subs      []events.Subscription
}

// NewRecorder subscribes to the session topics on bus.
func NewRecorder(collector *Collector, bus events.Bus) *Recorder {
	r := &Recorder{collector: collector}

	handlers := map[string]events.Handler{
		events.TopicImageAdded:        r.counter(ImagesAdded),
		events.TopicImageRejected:     r.onRejected,
		events.TopicImageRemoved:      r.counter(ImagesRemoved),
		events.TopicCompressStarted:   r.counter(BatchesStarted),
		events.TopicCompressFailed:    r.onFailed,
		events.TopicCompressCompleted: r.onCompleted,
		events.TopicResultSaved:       r.onSaved,
	}
	for topic, h := range handlers {
		r.subs = append(r.subs, bus.Subscribe(topic, h))
	}
	return r
}

// Collector returns the collector the recorder writes to.
func (r *Recorder) Collector() *Collector {
	return r.collector
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}

func (r *Recorder) counter(name string) events.Handler {
	return func(context.Context, events.Event) error {
		r.collector.IncCounter(name, nil)
		return nil
	}
}

func (r *Recorder) onRejected(_ context.Context, ev events.Event) error {
	var labels map[string]string
	if n, ok := ev.Data.(compressor.Notice); ok && n.Kind != "" {
		labels = map[string]string{"kind": string(n.Kind)}
	}
	r.collector.IncCounter(ImagesRejected, labels)
	return nil
}

func (r *Recorder) onFailed(_ context.Context, ev events.Event) error {
	var labels map[string]string
	if n, ok := ev.Data.(compressor.Notice); ok && n.Kind != "" {
		labels = map[string]string{"kind": string(n.Kind)}
	}
	r.collector.IncCounter(CompressFailures, labels)
	return nil
}

func (r *Recorder) onCompleted(_ context.Context, ev events.Event) error {
	s, ok := ev.Data.(processor.Summary)
	if !ok {
		return nil
	}
	r.collector.AddCounter(ImagesCompressed, float64(s.Count), nil)
	r.collector.AddCounter(BytesOriginal, float64(s.TotalOriginal), nil)
	r.collector.AddCounter(BytesOutput, float64(s.TotalOutput), nil)
	if s.TotalOriginal > 0 {
		r.collector.ObserveHistogram(BatchSaved, float64(s.PercentSaved), nil)
	}
	return nil
}

func (r *Recorder) onSaved(_ context.Context, ev events.Event) error {
	out, ok := ev.Data.(storage.UploadOutput)
	if !ok {
		return nil
	}
	r.collector.IncCounter(ResultsSaved, nil)
	r.collector.AddCounter(BytesWritten, float64(out.Size), nil)
	return nil
}
