// Package compressor is the command interface a host drives: ingest files,
// adjust settings, compress the session and save the results.
package compressor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/media/processor"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/session"
)

// DefaultWorkers bounds concurrent decodes when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures a Compressor. Zero values fall back to defaults; a zero
// DownloadDelay saves without pause.
type Options struct {
	Settings      codec.Settings
	Workers       int
	DownloadDelay time.Duration
	Sink          storage.Provider
	Bus           events.Publisher
	Logger        logging.Logger
	Pipeline      *processor.Pipeline
	Store         *session.Store
}

// Compressor owns one session: its images, results and live settings.
type Compressor struct {
	batchMu sync.Mutex // one CompressAll at a time

	settingsMu sync.RWMutex
	settings   codec.Settings

	store    *session.Store
	decoder  *codec.Decoder
	pipeline *processor.Pipeline
	sink     storage.Provider
	bus      events.Publisher
	logger   logging.Logger
	workers  int
	delay    time.Duration
}

// New builds a Compressor. The settings are validated.
func New(opts Options) (*Compressor, error) {
	if opts.Settings == (codec.Settings{}) {
		opts.Settings = codec.DefaultSettings()
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = events.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Store == nil {
		opts.Store = session.NewStore(nil)
	}
	if opts.Pipeline == nil {
		opts.Pipeline = processor.NewPipeline(opts.Logger)
	}

	return &Compressor{
		settings: opts.Settings,
		store:    opts.Store,
		decoder:  codec.NewDecoder(),
		pipeline: opts.Pipeline,
		sink:     opts.Sink,
		bus:      opts.Bus,
		logger:   opts.Logger.Named("compressor"),
		workers:  opts.Workers,
		delay:    max(opts.DownloadDelay, 0),
	}, nil
}

// Settings returns the current settings.
func (c *Compressor) Settings() codec.Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// UpdateSettings replaces the settings used by the next CompressAll.
func (c *Compressor) UpdateSettings(s codec.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.settingsMu.Lock()
	c.settings = s
	c.settingsMu.Unlock()

	c.logger.Info("settings updated",
		zap.Float64("quality", s.Quality),
		zap.Int("max_width", s.MaxWidth),
		zap.String("output_format", s.OutputFormat))
	return nil
}

// Images returns the session's images in display order.
func (c *Compressor) Images() []session.SourceImage {
	return c.store.Images()
}

// Results returns the results of the last batch.
func (c *Compressor) Results() []session.CompressedResult {
	return c.store.Results()
}

// RemoveImage drops one image. Unknown ids are ignored.
func (c *Compressor) RemoveImage(id string) bool {
	img, _ := c.store.Image(id)
	if !c.store.Remove(id) {
		return false
	}

	c.logger.Info("image removed", zap.String("image_id", id), zap.String("file", img.Name))
	c.notify(context.Background(), events.TopicImageRemoved, Notice{ID: id, File: img.Name, Message: "removed"})
	return true
}

// ClearAll drops every image and result and revokes their previews.
func (c *Compressor) ClearAll() {
	c.store.Clear()
	c.logger.Info("session cleared")
	c.notify(context.Background(), events.TopicSessionCleared, nil)
}

// CompressAll runs the pipeline over the current images with the settings in
// effect right now. The results replace those of the previous batch. With no
// images it does nothing.
func (c *Compressor) CompressAll(ctx context.Context) (processor.Batch, error) {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	images := c.store.Images()
	if len(images) == 0 {
		return processor.Batch{}, nil
	}

	settings := c.Settings()
	c.notify(ctx, events.TopicCompressStarted, len(images))

	batch, err := c.pipeline.CompressAll(ctx, images, settings)
	batch.Results = c.store.SetResults(batch.Results)

	for _, f := range batch.Failures {
		c.notify(ctx, events.TopicCompressFailed, noticeFromError(f.ID, f.File, f.Err))
	}

	summary, _ := batch.Summary()
	c.notify(ctx, events.TopicCompressCompleted, summary)
	return batch, err
}

// Summary aggregates the stored results. ok is false when there is nothing
// to report.
func (c *Compressor) Summary() (processor.Summary, bool) {
	return processor.Summarize(c.store.Results())
}

// Preview resolves a result's preview reference.
func (c *Compressor) Preview(ref string) (session.Blob, bool) {
	return c.store.Previews().Resolve(ref)
}

func (c *Compressor) requireSink() error {
	if c.sink == nil {
		return apperrors.NewInternal("no download sink configured")
	}
	return nil
}
