package events

import (
	"sync"
	"time"
)

const (
	TopicOrders   = "orders"
	TopicProducts = "products"

	TypeOrderCreated  = "order.created"
	TypeOrderStatus   = "order.status_changed"
	TypeOrderPaid     = "order.paid"
	TypeOrderCanceled = "order.canceled"
	TypeStockAlert    = "product.stock_alert"
)

const defaultSubscriberBuffer = 32

// Event is the envelope the lifecycle publishes after a transition commits.
// Delivery is best effort: subscribers with a full buffer miss the event.
type Event struct {
	Topic      string         `json:"topic"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	nextID uint64
	buffer int
}

type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
	ch    chan Event
	once  sync.Once
}

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[string]map[uint64]chan Event),
		buffer: defaultSubscriberBuffer,
	}
}

func (b *Bus) Publish(event Event) {
	if b == nil || event.Topic == "" {
		return
	}
	b.mu.RLock()
	channels := make([]chan Event, 0, len(b.subs[event.Topic]))
	for _, ch := range b.subs[event.Topic] {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]chan Event)
	}
	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.buffer)
	b.subs[topic][id] = ch
	return &Subscription{bus: b, topic: topic, id: id, ch: ch}
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.topic], s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
