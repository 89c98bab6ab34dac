package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartorder/smartorder/internal/devicetoken"
	"github.com/smartorder/smartorder/internal/events"
	"github.com/smartorder/smartorder/internal/providers/email"
	"github.com/smartorder/smartorder/internal/providers/push"
	"go.uber.org/zap"
)

// TokenSource resolves a customer's active push target.
type TokenSource interface {
	Active(ctx context.Context, customerKey string) (*devicetoken.DeviceToken, error)
}

type Config struct {
	LockTTL      time.Duration
	SendTimeout  time.Duration
	EmailRetries int
	EmailBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.EmailRetries <= 0 {
		c.EmailRetries = 3
	}
	if c.EmailBackoff <= 0 {
		c.EmailBackoff = 500 * time.Millisecond
	}
	return c
}

// Dispatcher fans order and product events out to the staff channel, the
// customer's device, and the customer's inbox. It subscribes after the
// triggering transition has committed; everything here is best effort and
// never reaches back into order state.
type Dispatcher struct {
	log         *zap.Logger
	cfg         Config
	bus         *events.Bus
	locker      Locker
	broadcaster Broadcaster
	push        push.Provider
	email       email.Provider
	tokens      TokenSource
}

func NewDispatcher(
	log *zap.Logger,
	cfg Config,
	bus *events.Bus,
	locker Locker,
	broadcaster Broadcaster,
	pushProvider push.Provider,
	emailProvider email.Provider,
	tokens TokenSource,
) *Dispatcher {
	return &Dispatcher{
		log:         log.Named("notification"),
		cfg:         cfg.withDefaults(),
		bus:         bus,
		locker:      locker,
		broadcaster: broadcaster,
		push:        pushProvider,
		email:       emailProvider,
		tokens:      tokens,
	}
}

// Run consumes bus events until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	orders := d.bus.Subscribe(events.TopicOrders)
	products := d.bus.Subscribe(events.TopicProducts)
	defer orders.Close()
	defer products.Close()

	d.log.Info("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("notification dispatcher stopped")
			return
		case event := <-orders.Events():
			d.handleOrderEvent(ctx, event)
		case event := <-products.Events():
			d.handleProductEvent(ctx, event)
		}
	}
}

func (d *Dispatcher) handleOrderEvent(ctx context.Context, event events.Event) {
	d.broadcast(ctx, events.TopicOrders, event)

	switch event.Type {
	case events.TypeOrderStatus, events.TypeOrderPaid, events.TypeOrderCanceled:
		d.notifyCustomer(ctx, event)
	}

	if event.Type == events.TypeOrderPaid && boolData(event, "send_email") {
		d.sendEmail(ctx, event,
			"Payment received",
			fmt.Sprintf("Your order %v is paid. Queue number %v.", event.Data["order_code"], event.Data["queue_number"]),
		)
	}
	if event.Type == events.TypeOrderCanceled && boolData(event, "send_email") {
		d.sendEmail(ctx, event,
			"Order canceled",
			fmt.Sprintf("Your order %v was canceled (%v).", event.Data["order_code"], event.Data["reason"]),
		)
	}
}

func (d *Dispatcher) handleProductEvent(ctx context.Context, event events.Event) {
	d.broadcast(ctx, events.TopicProducts, event)
}

func (d *Dispatcher) broadcast(ctx context.Context, channel string, event events.Event) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	if err := d.broadcaster.Broadcast(sendCtx, channel, event); err != nil {
		d.log.Warn("broadcast failed", zap.String("channel", channel), zap.Error(err))
	}
}

// notifyCustomer pushes one status notification per (order, status). The
// short-TTL lock debounces duplicate events from webhook retries or racing
// workers; losing the lock means someone else is sending the same thing.
func (d *Dispatcher) notifyCustomer(ctx context.Context, event events.Event) {
	// Token lookup uses the resolved customer key, so phone- or device-only
	// customers are reachable too. Older events carry only the email.
	customerKey := stringData(event, "customer_key")
	if customerKey == "" {
		customerKey = stringData(event, "customer_email")
	}
	if customerKey == "" {
		return
	}

	key := fmt.Sprintf("order:%v:status:%v", event.Data["order_id"], event.Data["status"])
	token, acquired, err := d.locker.TryLock(ctx, key, d.cfg.LockTTL)
	if err != nil {
		d.log.Warn("push debounce lock unavailable", zap.String("key", key), zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	_ = token // held for the TTL; the lock is the dedup, release would re-open the window

	record, err := d.tokens.Active(ctx, customerKey)
	if errors.Is(err, devicetoken.ErrTokenNotFound) {
		// No registered device is normal, not a failure.
		return
	}
	if err != nil {
		d.log.Warn("device token lookup failed", zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	err = d.push.Send(sendCtx, push.Message{
		Token: record.Token,
		Title: pushTitle(event),
		Body:  pushBody(event),
		Data: map[string]any{
			"order_id":   event.Data["order_id"],
			"order_code": event.Data["order_code"],
			"status":     event.Data["status"],
		},
	})
	if err != nil {
		d.log.Warn("push delivery failed",
			zap.Any("order_id", event.Data["order_id"]),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, event events.Event, subject, body string) {
	to := stringData(event, "customer_email")
	if to == "" {
		return
	}

	backoff := d.cfg.EmailBackoff
	var lastErr error
	for attempt := 1; attempt <= d.cfg.EmailRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		lastErr = d.email.Send(sendCtx, to, subject, body)
		cancel()
		if lastErr == nil {
			return
		}
		if attempt < d.cfg.EmailRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	d.log.Error("email permanently failed",
		zap.String("subject", subject),
		zap.Any("order_id", event.Data["order_id"]),
		zap.Error(lastErr),
	)
}

func pushTitle(event events.Event) string {
	switch event.Type {
	case events.TypeOrderPaid:
		return "Payment confirmed"
	case events.TypeOrderCanceled:
		return "Order canceled"
	default:
		return "Order update"
	}
}

func pushBody(event events.Event) string {
	switch event.Type {
	case events.TypeOrderPaid:
		return fmt.Sprintf("Order %v is paid and queued as number %v.", event.Data["order_code"], event.Data["queue_number"])
	case events.TypeOrderCanceled:
		return fmt.Sprintf("Order %v was canceled.", event.Data["order_code"])
	default:
		return fmt.Sprintf("Order %v is now %v.", event.Data["order_code"], event.Data["status"])
	}
}

func stringData(event events.Event, key string) string {
	value, _ := event.Data[key].(string)
	return value
}

func boolData(event events.Event, key string) bool {
	value, _ := event.Data[key].(bool)
	return value
}
