package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartorder/smartorder/internal/devicetoken"
	"github.com/smartorder/smartorder/internal/events"
	"github.com/smartorder/smartorder/internal/providers/email"
	"github.com/smartorder/smartorder/internal/providers/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (b *captureBroadcaster) Broadcast(ctx context.Context, channel string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

type staticTokens struct {
	record *devicetoken.DeviceToken
}

func (s *staticTokens) Active(ctx context.Context, customerKey string) (*devicetoken.DeviceToken, error) {
	if s.record == nil {
		return nil, devicetoken.ErrTokenNotFound
	}
	return s.record, nil
}

type flakyEmail struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (f *flakyEmail) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func newTestDispatcher(tokens TokenSource, emailProvider email.Provider) (*Dispatcher, *captureBroadcaster, *push.NoOpProvider) {
	log := zap.NewNop()
	broadcaster := &captureBroadcaster{}
	pushProvider := push.NewNoOp(log)
	dispatcher := NewDispatcher(
		log,
		Config{LockTTL: 5 * time.Second, SendTimeout: time.Second, EmailRetries: 3, EmailBackoff: time.Millisecond},
		events.NewBus(),
		NewMemoryLocker(),
		broadcaster,
		pushProvider,
		emailProvider,
		tokens,
	)
	return dispatcher, broadcaster, pushProvider
}

func statusEvent(orderID int64, status string, extra map[string]any) events.Event {
	data := map[string]any{
		"order_id":       orderID,
		"order_code":     "ORD-1",
		"status":         status,
		"customer_email": "budi@example.com",
		"queue_number":   4,
	}
	for k, v := range extra {
		data[k] = v
	}
	return events.Event{
		Topic:      events.TopicOrders,
		Type:       events.TypeOrderStatus,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestOrderEventsAreBroadcastToStaff(t *testing.T) {
	tokens := &staticTokens{}
	dispatcher, broadcaster, _ := newTestDispatcher(tokens, email.NewNoOp(zap.NewNop()))

	dispatcher.handleOrderEvent(context.Background(), statusEvent(1, "waiting", nil))
	dispatcher.handleProductEvent(context.Background(), events.Event{
		Topic: events.TopicProducts,
		Type:  events.TypeStockAlert,
		Data:  map[string]any{"product_id": int64(9), "kind": "low_stock"},
	})

	require.Len(t, broadcaster.channels, 2)
	assert.Equal(t, events.TopicOrders, broadcaster.channels[0])
	assert.Equal(t, events.TopicProducts, broadcaster.channels[1])
}

func TestCustomerPushIsDebouncedPerOrderStatus(t *testing.T) {
	tokens := &staticTokens{record: &devicetoken.DeviceToken{Token: "fcm-token-1"}}
	dispatcher, _, pushProvider := newTestDispatcher(tokens, email.NewNoOp(zap.NewNop()))
	ctx := context.Background()

	// Same (order, status) twice: webhook retry scenario.
	dispatcher.handleOrderEvent(ctx, statusEvent(42, "waiting", nil))
	dispatcher.handleOrderEvent(ctx, statusEvent(42, "waiting", nil))
	assert.Len(t, pushProvider.Sent(), 1)

	// A different status is a fresh notification.
	dispatcher.handleOrderEvent(ctx, statusEvent(42, "awaiting_confirmation", nil))
	sent := pushProvider.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "fcm-token-1", sent[0].Token)
}

func TestPushReachesPhoneOnlyCustomers(t *testing.T) {
	tokens := &staticTokens{record: &devicetoken.DeviceToken{Token: "fcm-token-2"}}
	dispatcher, _, pushProvider := newTestDispatcher(tokens, email.NewNoOp(zap.NewNop()))

	// Checkout without an email resolves the customer key to the phone
	// number; the token lookup must use it.
	event := statusEvent(21, "waiting", map[string]any{"customer_key": "+628123456789"})
	delete(event.Data, "customer_email")
	dispatcher.handleOrderEvent(context.Background(), event)

	sent := pushProvider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "fcm-token-2", sent[0].Token)
}

func TestMissingDeviceTokenIsSkippedQuietly(t *testing.T) {
	dispatcher, _, pushProvider := newTestDispatcher(&staticTokens{}, email.NewNoOp(zap.NewNop()))

	dispatcher.handleOrderEvent(context.Background(), statusEvent(7, "waiting", nil))
	assert.Empty(t, pushProvider.Sent())
}

func TestConfirmationEmailOnlyWhenClaimed(t *testing.T) {
	mailer := &flakyEmail{}
	dispatcher, _, _ := newTestDispatcher(&staticTokens{}, mailer)
	ctx := context.Background()

	paid := statusEvent(11, "waiting", map[string]any{"send_email": true})
	paid.Type = events.TypeOrderPaid
	dispatcher.handleOrderEvent(ctx, paid)

	// A re-delivered paid event arrives without the email claim.
	replay := statusEvent(11, "waiting", map[string]any{"send_email": false})
	replay.Type = events.TypeOrderPaid
	dispatcher.handleOrderEvent(ctx, replay)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "budi@example.com|Payment received", mailer.sent[0])
}

func TestEmailRetriesThenSucceeds(t *testing.T) {
	mailer := &flakyEmail{failures: 2}
	dispatcher, _, _ := newTestDispatcher(&staticTokens{}, mailer)

	canceled := statusEvent(13, "canceled", map[string]any{"send_email": true, "reason": "payment_expired"})
	canceled.Type = events.TypeOrderCanceled
	dispatcher.handleOrderEvent(context.Background(), canceled)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "budi@example.com|Order canceled", mailer.sent[0])
}

func TestEmailGivesUpAfterBoundedAttempts(t *testing.T) {
	mailer := &flakyEmail{failures: 10}
	dispatcher, _, _ := newTestDispatcher(&staticTokens{}, mailer)

	paid := statusEvent(17, "waiting", map[string]any{"send_email": true})
	paid.Type = events.TypeOrderPaid
	dispatcher.handleOrderEvent(context.Background(), paid)

	assert.Empty(t, mailer.sent)
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	assert.Equal(t, 7, mailer.failures)
}
