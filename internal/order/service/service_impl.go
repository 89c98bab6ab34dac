package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	catalogdomain "github.com/smartorder/smartorder/internal/catalog/domain"
	"github.com/smartorder/smartorder/internal/clock"
	"github.com/smartorder/smartorder/internal/config"
	discountdomain "github.com/smartorder/smartorder/internal/discount/domain"
	"github.com/smartorder/smartorder/internal/events"
	"github.com/smartorder/smartorder/internal/observability/metrics"
	"github.com/smartorder/smartorder/internal/order/domain"
	"github.com/smartorder/smartorder/internal/payment/adapters"
	paymentdomain "github.com/smartorder/smartorder/internal/payment/domain"
	"github.com/smartorder/smartorder/internal/queue"
	"github.com/smartorder/smartorder/internal/settings"
	"github.com/smartorder/smartorder/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Bus       *events.Bus
	Metrics   *metrics.Metrics
	Repo      domain.Repository
	Ledger    catalogdomain.Ledger
	Catalog   catalogdomain.Service
	Discounts discountdomain.Service
	Queue     *queue.Service
	Settings  *settings.Service
	Adapters  *adapters.Registry
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       config.Config
	bus       *events.Bus
	metrics   *metrics.Metrics
	repo      domain.Repository
	ledger    catalogdomain.Ledger
	catalog   catalogdomain.Service
	discounts discountdomain.Service
	queue     *queue.Service
	settings  *settings.Service
	adapters  *adapters.Registry
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Config,
		bus:       p.Bus,
		metrics:   p.Metrics,
		repo:      p.Repo,
		ledger:    p.Ledger,
		catalog:   p.Catalog,
		discounts: p.Discounts,
		queue:     p.Queue,
		settings:  p.Settings,
		adapters:  p.Adapters,
	}
}

func (s *service) NewIdempotencyKey() string {
	return uuid.NewString()
}

func (s *service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		s.metrics.CheckoutTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, key); err == nil {
		s.metrics.CheckoutTotal.WithLabelValues("replayed").Inc()
		return replayResult(existing), nil
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	customerKey := customerKey(req)
	hash := orderHash(req, customerKey)

	if _, err := s.repo.FindRecentByHash(ctx, s.db, hash, now.Add(-s.cfg.CheckoutDuplicateWindow)); err == nil {
		s.metrics.CheckoutTotal.WithLabelValues("duplicate").Inc()
		return nil, domain.ErrPossibleDuplicate
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var (
		items      []domain.OrderItem
		lines      []catalogdomain.Line
		subtotal   int64
		totalItems int
	)
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, catalogdomain.ErrProductNotFound
		}
		lineSubtotal := product.Price * int64(item.Quantity)
		items = append(items, domain.OrderItem{
			ID:        s.genID.Generate().Int64(),
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			Subtotal:  lineSubtotal,
		})
		lines = append(lines, catalogdomain.Line{ProductID: product.ID, Quantity: item.Quantity})
		subtotal += lineSubtotal
		totalItems += item.Quantity
	}

	var application *discountdomain.Application
	application, err = s.discounts.Evaluate(ctx, discountdomain.EvaluateRequest{
		Code:        req.DiscountCode,
		DiscountID:  req.DiscountID,
		Subtotal:    subtotal,
		CustomerKey: customerKey,
		DeviceID:    req.DeviceID,
		Now:         now,
	})
	if err != nil {
		s.metrics.CheckoutTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var discountAmount int64
	var discountID *int64
	if application != nil {
		discountAmount = application.Amount
		id := application.Discount.ID
		discountID = &id
	}

	taxable := subtotal - discountAmount
	taxAmount := roundHalfUp(float64(taxable) * s.settings.TaxPercent(ctx) / 100)
	totalAmount := taxable + taxAmount

	orderID := s.genID.Generate().Int64()
	order := &domain.Order{
		ID:             orderID,
		OrderCode:      fmt.Sprintf("ORD-%d", orderID),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  optional(req.CustomerEmail),
		CustomerPhone:  optional(req.CustomerPhone),
		CustomerKey:    customerKey,
		Notes:          optional(req.Notes),
		TotalItems:     totalItems,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		TotalAmount:    totalAmount,
		DiscountID:     discountID,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  domain.PaymentPending,
		Status:         domain.StatusPending,
		OrderHash:      hash,
		IdempotencyKey: &key,
		LastAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          items,
	}
	for i := range order.Items {
		order.Items[i].OrderID = orderID
	}
	if req.PaymentMethod == domain.MethodOnline {
		deadline := now.Add(s.cfg.PaymentExpiry)
		order.ExpiresAt = &deadline
	}

	var alerts []catalogdomain.StockAlert
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reserved, reserveErr := s.ledger.Reserve(ctx, tx, lines)
		if reserveErr != nil {
			return reserveErr
		}
		alerts = reserved

		number, queueErr := s.queue.NextTx(ctx, tx, now)
		if queueErr != nil {
			return queueErr
		}
		order.QueueDate = queue.DateKey(now)
		order.QueueNumber = number

		if application != nil {
			if usageErr := s.discounts.RecordUsage(ctx, tx, application.Discount.ID, customerKey, req.DeviceID, orderID); usageErr != nil {
				return usageErr
			}
		}
		return s.repo.Create(ctx, tx, order)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Another worker finished the same submission first. If it was
			// the same idempotency key this is a replay, otherwise a race we
			// surface as a retryable conflict.
			if existing, findErr := s.repo.FindByIdempotencyKey(ctx, s.db, key); findErr == nil {
				s.metrics.CheckoutTotal.WithLabelValues("replayed").Inc()
				return replayResult(existing), nil
			}
			s.metrics.CheckoutTotal.WithLabelValues("conflict").Inc()
			return nil, domain.ErrConflict
		}
		s.metrics.CheckoutTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	s.metrics.CheckoutTotal.WithLabelValues("created").Inc()
	s.log.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_code", order.OrderCode),
		zap.String("payment_method", order.PaymentMethod),
		zap.Int("queue_number", order.QueueNumber),
		zap.Int64("total_amount", order.TotalAmount),
	)

	s.publishStockAlerts(alerts)
	s.publishOrderEvent(events.TypeOrderCreated, order, nil)

	result := &domain.CheckoutResult{Order: order}
	if req.PaymentMethod == domain.MethodOnline {
		result.PaymentURL = s.openPaymentSession(ctx, order)
	}
	return result, nil
}

// openPaymentSession asks the gateway for a redirect URL. Failure leaves the
// order pending; the expiration sweep is the backstop if the customer never
// gets a working payment page.
func (s *service) openPaymentSession(ctx context.Context, order *domain.Order) string {
	adapter, err := s.adapters.Get(s.cfg.PaymentProvider)
	if err != nil {
		s.log.Error("payment provider not configured", zap.String("provider", s.cfg.PaymentProvider), zap.Error(err))
		return ""
	}

	session, err := adapter.CreateSession(ctx, paymentdomain.SessionRequest{
		OrderCode:     order.OrderCode,
		Amount:        order.TotalAmount,
		CustomerName:  order.CustomerName,
		CustomerEmail: deref(order.CustomerEmail),
		CustomerPhone: deref(order.CustomerPhone),
	})
	if err != nil {
		s.log.Error("payment session creation failed",
			zap.String("order_code", order.OrderCode),
			zap.Error(err),
		)
		if updErr := s.repo.SetGatewayStatus(ctx, s.db, order.ID, "session_failed"); updErr != nil {
			s.log.Error("failed to record gateway status", zap.Error(updErr))
		}
		return ""
	}

	if err := s.repo.SetGatewaySession(ctx, s.db, order.ID, session.Reference, session.RedirectURL, "session_created"); err != nil {
		s.log.Error("failed to store payment session", zap.Error(err))
	}
	order.GatewayReference = &session.Reference
	order.PaymentURL = &session.RedirectURL
	return session.RedirectURL
}

func (s *service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *service) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return s.repo.FindByCode(ctx, s.db, code)
}

func (s *service) Advance(ctx context.Context, id int64, actor string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	next := domain.NextStatus(order.Status)
	if next == "" {
		return nil, domain.ErrInvalidTransition
	}

	ok, err := s.repo.UpdateStatus(ctx, s.db, id, order.Status, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another actor; the current state decides.
		return nil, domain.ErrInvalidTransition
	}

	s.metrics.OrderTransition.WithLabelValues(order.Status, next).Inc()
	s.log.Info("order advanced",
		zap.Int64("order_id", id),
		zap.String("from", order.Status),
		zap.String("to", next),
		zap.String("actor", actor),
	)
	previous := order.Status
	order.Status = next
	s.publishOrderEvent(events.TypeOrderStatus, order, map[string]any{"from": previous, "actor": actor})
	return order, nil
}

func (s *service) ConfirmCash(ctx context.Context, id int64, amountReceived int64, actor string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.MethodCash {
		return nil, domain.ErrInvalidPaymentMethod
	}
	if order.Status != domain.StatusAwaitingConfirmation {
		return nil, domain.ErrInvalidTransition
	}
	if amountReceived < order.TotalAmount {
		return nil, domain.ErrAmountTooLow
	}

	now := s.clock.Now()
	change := amountReceived - order.TotalAmount
	ok, err := s.repo.CompleteCash(ctx, s.db, id, amountReceived, change, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}

	s.metrics.OrderTransition.WithLabelValues(domain.StatusAwaitingConfirmation, domain.StatusCompleted).Inc()
	s.log.Info("cash order completed",
		zap.Int64("order_id", id),
		zap.Int64("amount_received", amountReceived),
		zap.Int64("change", change),
		zap.String("actor", actor),
	)

	order.Status = domain.StatusCompleted
	order.PaymentStatus = domain.PaymentPaid
	order.AmountReceived = &amountReceived
	order.ChangeAmount = &change
	order.PaidAt = &now
	s.publishOrderEvent(events.TypeOrderStatus, order, map[string]any{"from": domain.StatusAwaitingConfirmation, "actor": actor})
	return order, nil
}

func (s *service) Cancel(ctx context.Context, id int64, reason, actor string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	var alerts []catalogdomain.StockAlert
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, cancelErr := s.repo.CancelAny(ctx, tx, id, reason)
		if cancelErr != nil {
			return cancelErr
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		released, releaseErr := s.ledger.Release(ctx, tx, itemLines(order.Items))
		if releaseErr != nil {
			return releaseErr
		}
		alerts = released
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransition.WithLabelValues(order.Status, domain.StatusCanceled).Inc()
	s.log.Info("order canceled",
		zap.Int64("order_id", id),
		zap.String("from", order.Status),
		zap.String("reason", reason),
		zap.String("actor", actor),
	)

	previous := order.Status
	order.Status = domain.StatusCanceled
	if order.PaymentStatus == domain.PaymentPending {
		// CancelAny terminated the payment axis alongside the workflow.
		order.PaymentStatus = domain.PaymentFailed
	}
	order.CancellationReason = &reason
	s.publishStockAlerts(alerts)
	s.publishOrderEvent(events.TypeOrderCanceled, order, map[string]any{
		"from":       previous,
		"reason":     reason,
		"actor":      actor,
		"send_email": s.wantsCancellationEmail(order),
	})
	return order, nil
}

func (s *service) ApplyPaymentStatus(ctx context.Context, orderCode string, status paymentdomain.NormalizedStatus, gatewayStatus, reference string) error {
	order, err := s.repo.FindByCode(ctx, s.db, orderCode)
	if err != nil {
		return err
	}

	switch status {
	case paymentdomain.StatusPending:
		if gatewayStatus != "" {
			return s.repo.SetGatewayStatus(ctx, s.db, order.ID, gatewayStatus)
		}
		return nil

	case paymentdomain.StatusPaid:
		return s.applyPaid(ctx, order, gatewayStatus, reference)

	case paymentdomain.StatusFailed:
		return s.cancelUnpaid(ctx, order, domain.PaymentFailed, "payment_failed", false, "gateway")

	case paymentdomain.StatusExpired:
		return s.cancelUnpaid(ctx, order, domain.PaymentExpired, "payment_expired", false, "gateway")

	case paymentdomain.StatusRefunded:
		// Refunds are operational follow-up, not a lifecycle transition.
		s.log.Warn("refund notification received",
			zap.String("order_code", orderCode),
			zap.String("gateway_status", gatewayStatus),
		)
		return s.repo.SetGatewayStatus(ctx, s.db, order.ID, gatewayStatus)
	}
	return nil
}

func (s *service) applyPaid(ctx context.Context, order *domain.Order, gatewayStatus, reference string) error {
	now := s.clock.Now()
	ok, err := s.repo.MarkPaid(ctx, s.db, order.ID, now, gatewayStatus, reference)
	if err != nil {
		return err
	}
	if !ok {
		// Payment already terminal: a re-delivered notification, nothing to do.
		return nil
	}

	sendEmail := false
	if order.CustomerEmail != nil {
		claimed, claimErr := s.repo.MarkEmailSent(ctx, s.db, order.ID, now)
		if claimErr != nil {
			s.log.Error("failed to claim confirmation email", zap.Error(claimErr))
		}
		sendEmail = claimed
	}

	s.metrics.OrderTransition.WithLabelValues(domain.PaymentPending, domain.PaymentPaid).Inc()
	s.log.Info("order paid",
		zap.Int64("order_id", order.ID),
		zap.String("order_code", order.OrderCode),
		zap.String("gateway_status", gatewayStatus),
		zap.String("actor", "gateway"),
	)

	previous := order.Status
	order.PaymentStatus = domain.PaymentPaid
	order.PaidAt = &now
	if order.Status == domain.StatusPending {
		order.Status = domain.StatusWaiting
	}
	s.publishOrderEvent(events.TypeOrderPaid, order, map[string]any{
		"from":       previous,
		"actor":      "gateway",
		"send_email": sendEmail,
	})
	return nil
}

func (s *service) cancelUnpaid(ctx context.Context, order *domain.Order, paymentStatus, reason string, requirePending bool, actor string) error {
	var alerts []catalogdomain.StockAlert
	canceled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, cancelErr := s.repo.CancelUnpaid(ctx, tx, order.ID, paymentStatus, reason, requirePending)
		if cancelErr != nil {
			return cancelErr
		}
		if !ok {
			return nil
		}
		canceled = true
		released, releaseErr := s.ledger.Release(ctx, tx, itemLines(order.Items))
		if releaseErr != nil {
			return releaseErr
		}
		alerts = released
		return nil
	})
	if err != nil {
		return err
	}
	if !canceled {
		return nil
	}

	s.metrics.OrderTransition.WithLabelValues(order.Status, domain.StatusCanceled).Inc()
	s.log.Info("unpaid order canceled",
		zap.Int64("order_id", order.ID),
		zap.String("payment_status", paymentStatus),
		zap.String("reason", reason),
		zap.String("actor", actor),
	)

	previous := order.Status
	order.Status = domain.StatusCanceled
	order.PaymentStatus = paymentStatus
	order.CancellationReason = &reason
	s.publishStockAlerts(alerts)
	s.publishOrderEvent(events.TypeOrderCanceled, order, map[string]any{
		"from":       previous,
		"reason":     reason,
		"actor":      actor,
		"send_email": s.wantsCancellationEmail(order),
	})
	return nil
}

func (s *service) RefreshPaymentStatus(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.MethodOnline || order.PaymentStatus != domain.PaymentPending {
		return order, nil
	}

	adapter, err := s.adapters.Get(s.cfg.PaymentProvider)
	if err != nil {
		return nil, err
	}
	status, err := adapter.PollStatus(ctx, order.OrderCode)
	if err != nil {
		return nil, err
	}
	if status != "" && status != paymentdomain.StatusPending {
		if applyErr := s.ApplyPaymentStatus(ctx, order.OrderCode, status, string(status), deref(order.GatewayReference)); applyErr != nil {
			return nil, applyErr
		}
	}
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range overdue {
		order := overdue[i]
		if err := s.cancelUnpaid(ctx, &order, domain.PaymentExpired, "payment_expired", true, "reaper"); err != nil {
			s.log.Error("failed to expire order", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		if order.Status == domain.StatusCanceled {
			swept++
		}
	}
	return swept, nil
}

func (s *service) wantsCancellationEmail(order *domain.Order) bool {
	return order.PaymentMethod == domain.MethodOnline &&
		order.PaymentStatus != domain.PaymentPaid &&
		order.CustomerEmail != nil
}

func (s *service) publishOrderEvent(eventType string, order *domain.Order, extra map[string]any) {
	data := map[string]any{
		"order_id":       order.ID,
		"order_code":     order.OrderCode,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"payment_method": order.PaymentMethod,
		"queue_number":   order.QueueNumber,
		"total_amount":   order.TotalAmount,
		"customer_name":  order.CustomerName,
	}
	if order.CustomerEmail != nil {
		data["customer_email"] = *order.CustomerEmail
	}
	if order.CustomerKey != "" {
		data["customer_key"] = order.CustomerKey
	}
	for k, v := range extra {
		data[k] = v
	}
	s.bus.Publish(events.Event{
		Topic:      events.TopicOrders,
		Type:       eventType,
		OccurredAt: s.clock.Now(),
		Data:       data,
	})
}

func (s *service) publishStockAlerts(alerts []catalogdomain.StockAlert) {
	for _, alert := range alerts {
		s.bus.Publish(events.Event{
			Topic:      events.TopicProducts,
			Type:       events.TypeStockAlert,
			OccurredAt: s.clock.Now(),
			Data: map[string]any{
				"product_id":   alert.ProductID,
				"product_name": alert.ProductName,
				"kind":         alert.Kind,
				"stock":        alert.Stock,
			},
		})
	}
}

func validateCheckout(req domain.CheckoutRequest) error {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if req.PaymentMethod != domain.MethodCash && req.PaymentMethod != domain.MethodOnline {
		return domain.ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return domain.ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}

// customerKey identifies a customer for duplicate detection and discount
// usage: email when present, then phone, then the device identifier.
func customerKey(req domain.CheckoutRequest) string {
	if email := strings.ToLower(strings.TrimSpace(req.CustomerEmail)); email != "" {
		return email
	}
	if phone := strings.TrimSpace(req.CustomerPhone); phone != "" {
		return phone
	}
	return strings.TrimSpace(req.DeviceID)
}

// orderHash fingerprints cart contents plus customer identity for the
// second-layer duplicate check.
func orderHash(req domain.CheckoutRequest, customerKey string) string {
	lines := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, fmt.Sprintf("%d:%d", item.ProductID, item.Quantity))
	}
	sort.Strings(lines)
	payload := customerKey + "|" + req.PaymentMethod + "|" + strings.Join(lines, ",")
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}

func roundHalfUp(value float64) int64 {
	return int64(math.Floor(value + 0.5))
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func replayResult(order *domain.Order) *domain.CheckoutResult {
	return &domain.CheckoutResult{
		Order:      order,
		Replayed:   true,
		PaymentURL: deref(order.PaymentURL),
	}
}

func itemLines(items []domain.OrderItem) []catalogdomain.Line {
	lines := make([]catalogdomain.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, catalogdomain.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
