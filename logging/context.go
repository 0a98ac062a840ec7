package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	// BatchIDKey is the context key for the compression batch id.
	BatchIDKey ctxKey = "batch_id"
	// ImageIDKey is the context key for the image being processed.
	ImageIDKey ctxKey = "image_id"
)

// WithContext creates a child logger with batch_id and image_id taken from ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if ctx == nil {
		return logger
	}

	var fields []zap.Field
	if batchID := GetBatchID(ctx); batchID != "" {
		fields = append(fields, zap.String("batch_id", batchID))
	}
	if imageID := GetImageID(ctx); imageID != "" {
		fields = append(fields, zap.String("image_id", imageID))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// GetBatchID extracts the batch id from context.
func GetBatchID(ctx context.Context) string {
	return stringValue(ctx, BatchIDKey)
}

// GetImageID extracts the image id from context.
func GetImageID(ctx context.Context) string {
	return stringValue(ctx, ImageIDKey)
}

// SetBatchID adds the batch id to context.
func SetBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// SetImageID adds the image id to context.
func SetImageID(ctx context.Context, imageID string) context.Context {
	return context.WithValue(ctx, ImageIDKey, imageID)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}
