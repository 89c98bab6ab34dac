package domain

import (
	"context"
	"time"

	paymentdomain "github.com/smartorder/smartorder/internal/payment/domain"
	"gorm.io/gorm"
)

type CheckoutItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CheckoutRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	CustomerName   string         `json:"customer_name"`
	CustomerEmail  string         `json:"customer_email"`
	CustomerPhone  string         `json:"customer_phone"`
	Notes          string         `json:"notes"`
	DeviceID       string         `json:"device_id"`
	PaymentMethod  string         `json:"payment_method"`
	DiscountCode   string         `json:"discount_code"`
	DiscountID     int64          `json:"discount_id"`
	Items          []CheckoutItem `json:"items"`
}

type CheckoutResult struct {
	Order *Order `json:"order"`
	// Replayed marks a safe idempotency-key replay of an earlier submission.
	Replayed   bool   `json:"replayed"`
	PaymentURL string `json:"payment_url,omitempty"`
}

type Service interface {
	// NewIdempotencyKey issues the single-use token the client echoes back on
	// checkout.
	NewIdempotencyKey() string
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Get(ctx context.Context, id int64) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	// Advance moves pending to waiting, waiting to awaiting_confirmation.
	// The actor is the staff member driving the transition and is carried
	// into the transition log and event.
	Advance(ctx context.Context, id int64, actor string) (*Order, error)
	// ConfirmCash completes an awaiting_confirmation order, recording the
	// amount received and the computed change.
	ConfirmCash(ctx context.Context, id int64, amountReceived int64, actor string) (*Order, error)
	Cancel(ctx context.Context, id int64, reason, actor string) (*Order, error)
	// ApplyPaymentStatus applies a normalized gateway status. Idempotent:
	// re-delivery of a terminal status is a no-op.
	ApplyPaymentStatus(ctx context.Context, orderCode string, status paymentdomain.NormalizedStatus, gatewayStatus, reference string) error
	// RefreshPaymentStatus polls the gateway, the fallback for missed
	// webhooks.
	RefreshPaymentStatus(ctx context.Context, id int64) (*Order, error)
	// ExpireOverdue cancels unpaid online orders past their deadline and
	// returns how many it swept.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Order, error)
	FindRecentByHash(ctx context.Context, db *gorm.DB, hash string, since time.Time) (*Order, error)
	// UpdateStatus is a compare-and-swap on the workflow status.
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, from, to string) (bool, error)
	// MarkPaid flips payment_status pending to paid and nudges a still-pending
	// workflow status to waiting, in one guarded statement.
	MarkPaid(ctx context.Context, db *gorm.DB, id int64, paidAt time.Time, gatewayStatus, reference string) (bool, error)
	// CancelUnpaid cancels an order whose payment never completed, setting the
	// given payment status. Guarded so a racing webhook wins.
	CancelUnpaid(ctx context.Context, db *gorm.DB, id int64, paymentStatus, reason string, requirePending bool) (bool, error)
	// CancelAny cancels a non-terminal order regardless of payment state. A
	// still-pending payment is marked failed in the same statement so a late
	// gateway "paid" cannot pass the MarkPaid guard afterwards.
	CancelAny(ctx context.Context, db *gorm.DB, id int64, reason string) (bool, error)
	CompleteCash(ctx context.Context, db *gorm.DB, id int64, amountReceived, change int64, paidAt time.Time) (bool, error)
	// MarkEmailSent claims the single confirmation-email send.
	MarkEmailSent(ctx context.Context, db *gorm.DB, id int64, at time.Time) (bool, error)
	SetGatewaySession(ctx context.Context, db *gorm.DB, id int64, reference, paymentURL, gatewayStatus string) error
	SetGatewayStatus(ctx context.Context, db *gorm.DB, id int64, gatewayStatus string) error
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]Order, error)
}
