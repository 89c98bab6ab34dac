package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type EvaluateRequest struct {
	Code        string
	DiscountID  int64
	Subtotal    int64
	CustomerKey string
	DeviceID    string
	Now         time.Time
}

type Service interface {
	// Evaluate quotes a discount without consuming the redemption. A nil
	// application with nil error means no discount applies (auto-apply path
	// with nothing eligible).
	Evaluate(ctx context.Context, req EvaluateRequest) (*Application, error)
	// RecordUsage commits the redemption inside the order's transaction.
	RecordUsage(ctx context.Context, tx *gorm.DB, discountID int64, customerKey, deviceID string, orderID int64) error
	// DeactivateEnded turns off discounts whose validity window has passed.
	DeactivateEnded(ctx context.Context, now time.Time) (int64, error)
}

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Discount, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Discount, error)
	ListAutoApply(ctx context.Context, db *gorm.DB) ([]Discount, error)
	HasUsage(ctx context.Context, db *gorm.DB, discountID int64, customerKey string) (bool, error)
	InsertUsage(ctx context.Context, db *gorm.DB, usage *Usage) error
	DeactivateEnded(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
