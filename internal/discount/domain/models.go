package domain

import (
	"errors"
	"time"
)

type Discount struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"type:text;not null"`
	Code         *string    `json:"code,omitempty" gorm:"type:text"`
	Percentage   float64    `json:"percentage" gorm:"not null"`
	MinPurchase  int64      `json:"min_purchase" gorm:"not null;default:0"`
	Active       bool       `json:"active" gorm:"not null;default:true"`
	RequiresCode bool       `json:"requires_code" gorm:"not null;default:false"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
	TimeFrom     *string    `json:"time_from,omitempty" gorm:"type:text"`
	TimeUntil    *string    `json:"time_until,omitempty" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"not null"`
}

func (Discount) TableName() string { return "discounts" }

// Usage enforces one redemption per customer per discount. The unique index
// on (discount_id, customer_key) is the race-safety net behind evaluation.
type Usage struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	DiscountID  int64     `json:"discount_id" gorm:"not null;index:ux_discount_usages,unique,priority:1"`
	CustomerKey string    `json:"customer_key" gorm:"type:text;not null;index:ux_discount_usages,unique,priority:2"`
	DeviceID    *string   `json:"device_id,omitempty" gorm:"type:text"`
	OrderID     *int64    `json:"order_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
}

func (Usage) TableName() string { return "discount_usages" }

// Application is the quote produced by evaluation. Nothing is recorded until
// the order is actually placed.
type Application struct {
	Discount Discount
	Amount   int64
}

var (
	ErrNotFound     = errors.New("discount_not_found")
	ErrInactive     = errors.New("discount_inactive")
	ErrOutOfWindow  = errors.New("discount_out_of_window")
	ErrBelowMinimum = errors.New("discount_below_minimum")
	ErrAlreadyUsed  = errors.New("discount_already_used")
	ErrCodeRequired = errors.New("discount_code_required")
)
