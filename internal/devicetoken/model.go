package devicetoken

import "time"

// DeviceToken binds a customer to at most one active push target. Registering
// a new token revokes everything the customer had before, which both enforces
// single-device login and keeps stale tokens out of the push path.
type DeviceToken struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	CustomerKey string     `json:"customer_key" gorm:"type:text;not null;index"`
	DeviceID    string     `json:"device_id" gorm:"type:text;not null"`
	Token       string     `json:"token" gorm:"type:text;not null"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
