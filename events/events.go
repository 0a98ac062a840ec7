// Package events carries user-visible notices from the compressor to whatever
// host is presenting them.
package events

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBusClosed is returned when publishing to a closed Bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrPublishTimeout is returned when the publish buffer is full and context expires.
	ErrPublishTimeout = errors.New("event publish timeout: buffer full")
)

// Topics published by the compressor.
const (
	TopicImageAdded        = "image.added"
	TopicImageRejected     = "image.rejected"
	TopicImageRemoved      = "image.removed"
	TopicSessionCleared    = "session.cleared"
	TopicCompressStarted   = "compress.started"
	TopicCompressFailed    = "compress.failed"
	TopicCompressCompleted = "compress.completed"
	TopicResultSaved       = "result.saved"
)

// Event is one notification.
type Event struct {
	Name      string    // e.g. "image.rejected"
	Data      any       // payload
	Source    string    // originating component
	Timestamp time.Time // when the event was created
}

// Handler receives events for a topic.
type Handler func(ctx context.Context, event Event) error

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe()
}

// Publisher is the sending half of a bus.
type Publisher interface {
	// Publish sends an event. Blocks if buffer is full until ctx expires.
	Publish(ctx context.Context, event Event) error
}

// Bus is the event mechanism between the compressor and its host.
type Bus interface {
	Publisher

	// Subscribe registers a handler for a topic. Returns a Subscription for unsubscribing.
	Subscribe(topic string, handler Handler) Subscription

	// Close drains pending events and waits for in-flight handlers to complete.
	Close() error
}
