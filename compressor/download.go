package compressor

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/media/storage"
	"github.com/leeforge/imgsqueeze/session"
)

// DownloadOne saves the result with id to the sink under its output name.
func (c *Compressor) DownloadOne(ctx context.Context, id string) (storage.UploadOutput, error) {
	if err := c.requireSink(); err != nil {
		return storage.UploadOutput{}, err
	}

	r, ok := c.store.Result(id)
	if !ok {
		return storage.UploadOutput{}, apperrors.NewNotFound("result", id)
	}
	return c.save(ctx, r)
}

// DownloadAll saves every stored result in order, one at a time. Saves after
// the first are spaced by the configured delay. A failed save is collected
// and the rest still run; a done ctx stops the loop.
func (c *Compressor) DownloadAll(ctx context.Context) ([]storage.UploadOutput, error) {
	if err := c.requireSink(); err != nil {
		return nil, err
	}

	results := c.store.Results()
	if len(results) == 0 {
		return nil, nil
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.delay), 1)
	}

	saved := make([]storage.UploadOutput, 0, len(results))
	chain := apperrors.NewErrorChain()
	for _, r := range results {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return saved, ctxErr
			}
			return saved, err
		}

		out, err := c.save(ctx, r)
		if err != nil {
			chain.Add(err)
			continue
		}
		saved = append(saved, out)
	}
	return saved, chain.Err()
}

func (c *Compressor) save(ctx context.Context, r session.CompressedResult) (storage.UploadOutput, error) {
	out, err := c.sink.Upload(ctx, storage.UploadInput{
		File:        bytes.NewReader(r.Data),
		Filename:    r.OutputName,
		ContentType: r.Type,
		Size:        r.OutputSize,
		Metadata: map[string]any{
			"id":           r.ID,
			"originalName": r.OriginalName,
		},
	})
	if err != nil {
		c.logger.Error("save failed",
			zap.String("image_id", r.ID),
			zap.String("file", r.OutputName),
			zap.String("sink", c.sink.Name()),
			zap.Error(err))
		return storage.UploadOutput{}, err
	}

	c.logger.Info("result saved",
		zap.String("image_id", r.ID),
		zap.String("file", out.Filename),
		zap.String("url", out.URL),
		zap.Int64("size", out.Size))
	c.notify(ctx, events.TopicResultSaved, out)
	return out, nil
}
