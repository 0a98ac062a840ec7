// Package processor runs the decode-resize-encode pass over a session's images.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/session"
)

// Failure records one image the pipeline skipped.
type Failure struct {
	ID   string
	File string
	Err  error
}

// Batch is the outcome of one CompressAll call.
type Batch struct {
	ID       string
	Results  []session.CompressedResult
	Failures []Failure
	Duration time.Duration
}

// Summary aggregates the batch's results.
func (b Batch) Summary() (Summary, bool) {
	return Summarize(b.Results)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry replaces the default encoder registry.
func WithRegistry(r *codec.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithRasterizer replaces the default rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(p *Pipeline) { p.rasterizer = r }
}

// Pipeline compresses images one at a time.
type Pipeline struct {
	registry   *codec.Registry
	rasterizer Rasterizer
	logger     logging.Logger
}

// NewPipeline creates a pipeline with the default registry and rasterizer.
func NewPipeline(logger logging.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		registry:   codec.DefaultRegistry(),
		rasterizer: NewNativeRasterizer(),
		logger:     logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompressAll processes images in order. An image that fails to encode is
// recorded in Failures and skipped. ctx is checked between images; when it is
// done the partial batch is returned with ctx.Err().
func (p *Pipeline) CompressAll(ctx context.Context, images []session.SourceImage, settings codec.Settings) (Batch, error) {
	start := time.Now()
	batch := Batch{ID: uuid.NewString()}
	ctx = logging.SetBatchID(ctx, batch.ID)

	log := logging.WithContext(p.logger, ctx)
	log.Info("compression started",
		zap.Int("images", len(images)),
		zap.Float64("quality", settings.Quality),
		zap.Int("max_width", settings.MaxWidth),
		zap.String("output_format", settings.OutputFormat))

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			batch.Duration = time.Since(start)
			log.Warn("compression cancelled",
				zap.Int("done", len(batch.Results)+len(batch.Failures)),
				zap.Int("images", len(images)))
			return batch, err
		}

		imgCtx := logging.SetImageID(ctx, img.ID)
		result, err := p.compressOne(img, settings)
		if err != nil {
			logging.WithContext(p.logger, imgCtx).Error("image compression failed",
				zap.String("file", img.Name),
				zap.Error(err))
			batch.Failures = append(batch.Failures, Failure{ID: img.ID, File: img.Name, Err: err})
			continue
		}

		logging.WithContext(p.logger, imgCtx).Debug("image compressed",
			zap.String("file", img.Name),
			zap.String("type", result.Type),
			zap.Int("width", result.Width),
			zap.Int("height", result.Height),
			zap.Int64("original_size", result.OriginalSize),
			zap.Int64("output_size", result.OutputSize))
		batch.Results = append(batch.Results, result)
	}

	batch.Duration = time.Since(start)
	log.Info("compression finished",
		zap.Int("results", len(batch.Results)),
		zap.Int("failures", len(batch.Failures)),
		zap.Duration("duration", batch.Duration))
	return batch, nil
}

func (p *Pipeline) compressOne(img session.SourceImage, settings codec.Settings) (session.CompressedResult, error) {
	if img.Surface == nil {
		return session.CompressedResult{}, apperrors.NewEncodeFailure(img.Name, nil).
			WithDetail("reason", "surface released")
	}

	width, height := TargetSize(img.Width, img.Height, settings.MaxWidth)
	surface, err := p.rasterizer.Rasterize(img.Surface, width, height)
	if err != nil {
		return session.CompressedResult{}, apperrors.NewEncodeFailure(img.Name, err)
	}

	outputType := codec.ResolveOutputType(settings, img.Type)
	quality := codec.ResolveQuality(outputType, settings.Quality)

	enc, err := p.registry.Get(outputType)
	if err != nil {
		return session.CompressedResult{}, apperrors.NewEncodeFailure(img.Name, err).
			WithDetail("type", outputType)
	}

	data, err := codec.EncodeToBytes(enc, surface, quality)
	if err != nil {
		return session.CompressedResult{}, apperrors.NewEncodeFailure(img.Name, err).
			WithDetail("type", outputType)
	}

	return session.CompressedResult{
		ID:           img.ID,
		OriginalName: img.Name,
		OutputName:   codec.OutputName(img.Name, settings, outputType),
		OriginalSize: img.Size,
		OutputSize:   int64(len(data)),
		Width:        width,
		Height:       height,
		Type:         outputType,
		Data:         data,
	}, nil
}
