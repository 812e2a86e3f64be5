// Package relay carries one-shot, fire-and-forget result messages from the
// Page Driver to whoever listens: in-process subscribers (the SSE stream)
// and external sinks (redis stream, webhook). Publishing never blocks and
// never fails; the Page Driver's return value stays authoritative.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/offerscout/metrics"
	"github.com/use-agent/offerscout/models"
)

// ActionSearchResults is the action carried by every result message.
const ActionSearchResults = "searchResults"

// Message is one source's outcome for one query.
type Message struct {
	Action    string               `json:"action"`
	Store     string               `json:"store"`
	Data      *models.SourceResult `json:"data"`
	Fault     string               `json:"fault,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

// NewMessage builds a searchResults message. fault is the taxonomy code of
// an absorbed error, or empty.
func NewMessage(requestID, store string, data *models.SourceResult, fault string) Message {
	return Message{
		Action:    ActionSearchResults,
		Store:     store,
		Data:      data,
		Fault:     fault,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Publisher is what the Page Driver sees of the relay.
type Publisher interface {
	Publish(msg Message)
}

// Sink delivers messages outside the process.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// sinkTimeout bounds one Deliver call.
const sinkTimeout = 10 * time.Second

// Bus fans messages out to subscribers and sinks. It is safe for concurrent
// use.
type Bus struct {
	buffer int
	sinks  []Sink

	mu     sync.RWMutex
	subs   map[int]chan Message
	nextID int
	closed bool

	queue chan Message
	wg    sync.WaitGroup
}

// NewBus creates a Bus whose subscriber channels and sink queue hold buffer
// messages, and starts the sink worker.
func NewBus(buffer int, sinks ...Sink) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	b := &Bus{
		buffer: buffer,
		sinks:  sinks,
		subs:   make(map[int]chan Message),
		queue:  make(chan Message, buffer),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Publish hands msg to every subscriber and to the sink queue without
// blocking. A full channel drops the message.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			metrics.RelayMessagesTotal.WithLabelValues("subscriber", "dropped").Inc()
		}
	}

	if len(b.sinks) == 0 {
		return
	}
	select {
	case b.queue <- msg:
	default:
		metrics.RelayMessagesTotal.WithLabelValues("queue", "dropped").Inc()
		slog.Warn("relay: sink queue full, message dropped", "store", msg.Store, "request_id", msg.RequestID)
	}
}

// Subscribe returns a channel of future messages and a func that ends the
// subscription. The channel is closed by the cancel func or by Close.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops accepting messages, closes every subscription and waits for
// queued sink deliveries until ctx is done.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	close(b.queue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) run() {
	defer b.wg.Done()
	for msg := range b.queue {
		for _, s := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			err := s.Deliver(ctx, msg)
			cancel()
			if err != nil {
				metrics.RelayMessagesTotal.WithLabelValues(s.Name(), "failed").Inc()
				slog.Warn("relay: sink delivery failed",
					"sink", s.Name(),
					"store", msg.Store,
					"request_id", msg.RequestID,
					"error", err,
				)
				continue
			}
			metrics.RelayMessagesTotal.WithLabelValues(s.Name(), "delivered").Inc()
		}
	}
}
