// Package broadcast fans normalized price ticks out to passive
// subscribers. Delivery is lossy: a slow subscriber loses ticks rather
// than slowing the feed.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// ErrSinkClosed is returned by a Sink that will accept no more ticks.
// The hub unregisters it.
var ErrSinkClosed = errors.New("sink closed")

// Sink receives ticks from the hub, one at a time.
type Sink interface {
	Name() string
	Send(ctx context.Context, tick domain.PriceTick) error
}

// PriceMessage is the JSON shape sent to subscribers.
type PriceMessage struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// NewPriceMessage converts a tick to its wire shape.
func NewPriceMessage(tick domain.PriceTick) PriceMessage {
	return PriceMessage{Symbol: tick.Symbol, Price: json.Number(tick.Price.String())}
}

type subscription struct {
	sink Sink
	ch   chan domain.PriceTick
	done chan struct{}
}

// Hub delivers every published tick to each registered sink through its
// own bounded queue.
type Hub struct {
	buffer  int
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped atomic.Uint64

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	closed bool
}

// NewHub creates a Hub whose per-sink queues hold buffer ticks.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		buffer: buffer,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]*subscription),
	}
}

// Register starts delivering ticks to sink. The returned function
// unregisters it and waits for its delivery goroutine to exit.
func (h *Hub) Register(sink Sink) (unregister func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	sub := &subscription{
		sink: sink,
		ch:   make(chan domain.PriceTick, h.buffer),
		done: make(chan struct{}),
	}
	h.subs[id] = sub
	h.wg.Add(1)
	h.mu.Unlock()

	go h.deliver(id, sub)
	h.logger.Debug("sink registered", slog.String("sink", sink.Name()))

	return func() {
		h.remove(id)
		<-sub.done
	}
}

// Publish queues tick for every sink without blocking. A sink whose queue
// is full misses the tick.
func (h *Hub) Publish(tick domain.PriceTick) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- tick:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns the number of ticks discarded because a queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Len returns the number of registered sinks.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every sink and waits for delivery to stop.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) deliver(id int, sub *subscription) {
	defer h.wg.Done()
	defer close(sub.done)

	for tick := range sub.ch {
		err := sub.sink.Send(h.ctx, tick)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSinkClosed) {
			h.logger.Debug("sink closed", slog.String("sink", sub.sink.Name()))
			h.remove(id)
			// Drain so the closed channel ends the loop.
			for range sub.ch {
			}
			return
		}
		h.logger.Warn("sink send failed",
			slog.String("sink", sub.sink.Name()),
			slog.String("error", err.Error()),
		)
	}
}
