package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicOrders)
	defer sub.Close()

	bus.Publish(Event{Topic: TopicOrders, Type: TypeOrderCreated, Data: map[string]any{"order_code": "A-1"}})

	select {
	case got := <-sub.Events():
		assert.Equal(t, TypeOrderCreated, got.Type)
		assert.Equal(t, "A-1", got.Data["order_code"])
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicProducts)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultSubscriberBuffer*2; i++ {
			bus.Publish(Event{Topic: TopicProducts, Type: TypeStockAlert})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a saturated subscriber")
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicOrders)
	defer sub.Close()

	bus.Publish(Event{Topic: TopicProducts, Type: TypeStockAlert})

	select {
	case <-sub.Events():
		t.Fatal("unexpected cross-topic delivery")
	case <-time.After(50 * time.Millisecond):
	}
}
