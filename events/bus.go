package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/imgsqueeze/logging"
)

// DefaultBufferSize is used when NewBus is given a non-positive size.
const DefaultBufferSize = 256

// bus implements Bus with a buffered channel and backpressure.
type bus struct {
	subscribers map[string][]subscriberEntry
	mu          sync.RWMutex
	ch          chan envelope
	wg          sync.WaitGroup
	closed      atomic.Bool
	sendMu      sync.RWMutex // Publish holds it shared from the closed check to the send
	logger      logging.Logger
	nextID      atomic.Uint64
	done        chan struct{} // tells the dispatcher to drain and stop
	stopped     chan struct{} // closed once the dispatcher has returned
}

type envelope struct {
	ctx   context.Context
	event Event
}

type subscriberEntry struct {
	id      uint64
	handler Handler
}

type subscription struct {
	bus   *bus
	topic string
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		subs := s.bus.subscribers[s.topic]
		for i, entry := range subs {
			if entry.id == s.id {
				s.bus.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	})
}

// NewBus creates a Bus with the given buffer size.
func NewBus(bufferSize int, logger logging.Logger) Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	b := &bus{
		subscribers: make(map[string][]subscriberEntry),
		ch:          make(chan envelope, bufferSize),
		logger:      logger.Named("events"),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go b.dispatch()
	return b
}

func (b *bus) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case env := <-b.ch:
			b.fanOut(env)
		case <-b.done:
			for {
				select {
				case env := <-b.ch:
					b.fanOut(env)
				default:
					return
				}
			}
		}
	}
}

func (b *bus) fanOut(env envelope) {
	b.mu.RLock()
	subs := append([]subscriberEntry{}, b.subscribers[env.event.Name]...)
	b.mu.RUnlock()

	for _, entry := range subs {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			if err := h(env.ctx, env.event); err != nil {
				b.logger.Warn("event handler error",
					zap.String("event", env.event.Name),
					zap.Error(err))
			}
		}(entry.handler)
	}
}

// Publish sends an event. Blocks until buffer has space or ctx expires.
func (b *bus) Publish(ctx context.Context, event Event) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	if b.closed.Load() {
		return ErrBusClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	env := envelope{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case b.ch <- env:
		return nil
	default:
		select {
		case b.ch <- env:
			return nil
		case <-ctx.Done():
			return ErrPublishTimeout
		}
	}
}

// Subscribe registers a handler for a topic.
func (b *bus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{
		id:      id,
		handler: handler,
	})

	return &subscription{bus: b, topic: topic, id: id}
}

// Close stops accepting new events, drains pending, and waits for in-flight handlers.
func (b *bus) Close() error {
	b.sendMu.Lock()
	already := b.closed.Swap(true)
	b.sendMu.Unlock()
	if already {
		return nil
	}

	close(b.done)
	<-b.stopped
	b.wg.Wait()
	return nil
}

// Nop returns a Publisher that discards events.
func Nop() Publisher { return nopPublisher{} }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
