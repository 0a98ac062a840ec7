package compressor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leeforge/imgsqueeze/events"
	"github.com/leeforge/imgsqueeze/session"
)

// FileInput is one file handed over by the host.
type FileInput struct {
	Name string
	// Type is the declared MIME type.
	Type string
	// Size is the reported size; zero means len(Data).
	Size int64
	Data []byte
}

func (f FileInput) size() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Data))
}

// IngestReport lists what Ingest added and what it turned away.
type IngestReport struct {
	// Added holds the new image ids in completion order.
	Added []string
	// Rejected holds type and size rejections in input order, followed by
	// decode failures in completion order.
	Rejected []Notice
}

// Ingest validates every file, then decodes the accepted ones concurrently.
// Each decoded image is appended to the session as soon as it is ready. One
// bad file never affects the others. A done ctx stops files that have not
// started decoding and is returned as the error.
func (c *Compressor) Ingest(ctx context.Context, files []FileInput) (IngestReport, error) {
	var report IngestReport

	accepted := make([]FileInput, 0, len(files))
	for _, f := range files {
		if err := c.decoder.Validate(f.Name, f.Type, f.size()); err != nil {
			c.reject(ctx, &report, "", f.Name, err)
			continue
		}
		accepted = append(accepted, f)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, f := range accepted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			id := uuid.NewString()
			decoded, err := c.decoder.Decode(f.Name, f.Type, f.Data)
			if err != nil {
				mu.Lock()
				c.reject(ctx, &report, id, f.Name, err)
				mu.Unlock()
				return nil
			}

			img := session.SourceImage{
				ID:      id,
				Name:    f.Name,
				Size:    f.size(),
				Type:    f.Type,
				Width:   decoded.Width,
				Height:  decoded.Height,
				Surface: decoded.Surface,
			}

			mu.Lock()
			defer mu.Unlock()
			if err := c.store.Append(img); err != nil {
				c.reject(ctx, &report, id, f.Name, err)
				return nil
			}
			report.Added = append(report.Added, id)

			c.logger.Info("image added",
				zap.String("image_id", id),
				zap.String("file", f.Name),
				zap.Int("width", decoded.Width),
				zap.Int("height", decoded.Height))
			c.notify(ctx, events.TopicImageAdded, Notice{ID: id, File: f.Name, Message: "added"})
			return nil
		})
	}

	err := g.Wait()
	return report, err
}

func (c *Compressor) reject(ctx context.Context, report *IngestReport, id, file string, err error) {
	n := noticeFromError(id, file, err)
	report.Rejected = append(report.Rejected, n)

	c.logger.Warn("file rejected",
		zap.String("file", file),
		zap.String("kind", string(n.Kind)),
		zap.Error(err))
	c.notify(ctx, events.TopicImageRejected, n)
}
