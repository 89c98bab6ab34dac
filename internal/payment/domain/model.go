package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
)

// NormalizedStatus is the closed vocabulary the order lifecycle operates on.
// Gateway-specific spellings never leave the adapter boundary.
type NormalizedStatus string

const (
	StatusPending  NormalizedStatus = "pending"
	StatusPaid     NormalizedStatus = "paid"
	StatusFailed   NormalizedStatus = "failed"
	StatusExpired  NormalizedStatus = "expired"
	StatusRefunded NormalizedStatus = "refunded"
)

type Session struct {
	Reference   string
	RedirectURL string
}

type SessionRequest struct {
	OrderCode     string
	Amount        int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Notification is a verified, normalized webhook payload.
type Notification struct {
	Provider      string
	OrderCode     string
	Reference     string
	Status        NormalizedStatus
	GatewayStatus string
	OccurredAt    time.Time
	RawPayload    []byte
}

type Adapter interface {
	Provider() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	PollStatus(ctx context.Context, orderCode string) (NormalizedStatus, error)
	// Verify authenticates the payload before any state is touched.
	Verify(payload []byte, headers http.Header) error
	Parse(payload []byte) (*Notification, error)
}

// EventRecord is the durable webhook receipt, written before processing so a
// failed handler can be reconciled instead of relying on gateway retries.
type EventRecord struct {
	ID               int64          `json:"id" gorm:"primaryKey"`
	Provider         string         `json:"provider" gorm:"type:text;not null"`
	OrderCode        string         `json:"order_code" gorm:"type:text;not null;index"`
	GatewayStatus    string         `json:"gateway_status" gorm:"type:text;not null"`
	NormalizedStatus string         `json:"normalized_status" gorm:"type:text;not null"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt       time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt      *time.Time     `json:"processed_at"`
	ProcessError     *string        `json:"process_error,omitempty" gorm:"type:text"`
}

func (EventRecord) TableName() string { return "payment_events" }

var (
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrInvalidConfig      = errors.New("invalid_gateway_config")
	ErrProviderNotFound   = errors.New("payment_provider_not_found")
	ErrEventIgnored       = errors.New("payment_event_ignored")
	ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")
)
