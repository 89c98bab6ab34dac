package domain

import "time"

// Kitchen/staff workflow states.
const (
	StatusPending              = "pending"
	StatusWaiting              = "waiting"
	StatusAwaitingConfirmation = "awaiting_confirmation"
	StatusCompleted            = "completed"
	StatusCanceled             = "canceled"
)

// Payment sub-states.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

const (
	MethodCash   = "cash"
	MethodOnline = "online"
)

// Order is the central aggregate. Customer fields and line items are
// snapshots taken at creation; later product or profile edits never alter a
// placed order. Rows are never hard-deleted.
type Order struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	OrderCode string `json:"order_code" gorm:"type:text;not null;uniqueIndex"`

	QueueDate   string `json:"queue_date" gorm:"type:text;not null;index:ux_orders_queue,unique,priority:1"`
	QueueNumber int    `json:"queue_number" gorm:"not null;index:ux_orders_queue,unique,priority:2"`

	CustomerName  string  `json:"customer_name" gorm:"type:text;not null"`
	CustomerEmail *string `json:"customer_email,omitempty" gorm:"type:text"`
	CustomerPhone *string `json:"customer_phone,omitempty" gorm:"type:text"`
	Notes         *string `json:"notes,omitempty" gorm:"type:text"`

	// CustomerKey is the resolved identity: email, else phone, else device id.
	// Shared with discount usage, duplicate detection and push-token lookup.
	CustomerKey string `json:"-" gorm:"type:text;not null;default:''"`

	TotalItems     int    `json:"total_items" gorm:"not null"`
	Subtotal       int64  `json:"subtotal" gorm:"not null"`
	DiscountAmount int64  `json:"discount_amount" gorm:"not null;default:0"`
	TaxAmount      int64  `json:"tax_amount" gorm:"not null;default:0"`
	TotalAmount    int64  `json:"total_amount" gorm:"not null"`
	AmountReceived *int64 `json:"amount_received,omitempty"`
	ChangeAmount   *int64 `json:"change_amount,omitempty"`

	DiscountID *int64 `json:"discount_id,omitempty"`

	PaymentMethod    string     `json:"payment_method" gorm:"type:text;not null"`
	PaymentStatus    string     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	GatewayReference *string    `json:"gateway_reference,omitempty" gorm:"type:text"`
	GatewayStatus    *string    `json:"gateway_status,omitempty" gorm:"type:text"`
	PaymentURL       *string    `json:"payment_url,omitempty" gorm:"type:text"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" gorm:"index"`

	OrderHash      string    `json:"-" gorm:"type:text;not null;index"`
	IdempotencyKey *string   `json:"-" gorm:"type:text;uniqueIndex"`
	LastAttemptAt  time.Time `json:"-" gorm:"not null"`

	ConfirmationEmailSentAt *time.Time `json:"-"`

	Status             string  `json:"status" gorm:"type:text;not null;default:pending;index"`
	CancellationReason *string `json:"cancellation_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is an immutable price/name snapshot of one cart line.
type OrderItem struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	OrderID   int64  `json:"order_id" gorm:"not null;index"`
	ProductID int64  `json:"product_id" gorm:"not null"`
	Name      string `json:"name" gorm:"type:text;not null"`
	UnitPrice int64  `json:"unit_price" gorm:"not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
	Subtotal  int64  `json:"subtotal" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// Terminal reports whether no further workflow transition is allowed.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCanceled
}

// NextStatus is the staff-advance progression. Empty string means the
// current state has no staff-driven successor.
func NextStatus(current string) string {
	switch current {
	case StatusPending:
		return StatusWaiting
	case StatusWaiting:
		return StatusAwaitingConfirmation
	default:
		return ""
	}
}
