package compressor

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/events"
)

// publishTimeout bounds how long a command waits on a full event buffer.
const publishTimeout = time.Second

// Notice is a user-visible message about one file.
type Notice struct {
	ID      string              `json:"id,omitempty"`
	File    string              `json:"file"`
	Kind    apperrors.ErrorType `json:"kind,omitempty"`
	Message string              `json:"message"`
}

// noticeFromError names the file and the reason it was dropped.
func noticeFromError(id, file string, err error) Notice {
	return Notice{
		ID:      id,
		File:    file,
		Kind:    apperrors.TypeOf(err),
		Message: err.Error(),
	}
}

func (c *Compressor) notify(ctx context.Context, topic string, data any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := c.bus.Publish(ctx, events.Event{
		Name:   topic,
		Data:   data,
		Source: "compressor",
	})
	if err != nil {
		c.logger.Debug("event dropped", zap.String("event", topic), zap.Error(err))
	}
}
