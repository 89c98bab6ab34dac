package snappay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smartorder/smartorder/internal/payment/domain"
)

// Adapter speaks the SnapPay gateway protocol. Notification authenticity is
// a SHA-512 digest over order_id + status_code + gross_amount + server key,
// carried in the payload's signature_key field.
type Adapter struct {
	baseURL   string
	serverKey string
	client    *http.Client
}

type Config struct {
	BaseURL   string
	ServerKey string
	Timeout   time.Duration
}

func New(cfg Config) (*Adapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	serverKey := strings.TrimSpace(cfg.ServerKey)
	if baseURL == "" || serverKey == "" {
		return nil, domain.ErrInvalidConfig
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		baseURL:   baseURL,
		serverKey: serverKey,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (a *Adapter) Provider() string { return "snappay" }

type sessionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email,omitempty"`
		Phone     string `json:"phone,omitempty"`
	} `json:"customer_details"`
}

type sessionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

func (a *Adapter) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	var body sessionRequest
	body.TransactionDetails.OrderID = req.OrderCode
	body.TransactionDetails.GrossAmount = req.Amount
	body.CustomerDetails.FirstName = req.CustomerName
	body.CustomerDetails.Email = req.CustomerEmail
	body.CustomerDetails.Phone = req.CustomerPhone

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/snap/v1/transactions", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(a.serverKey, "")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if parsed.Token == "" {
		return nil, domain.ErrGatewayUnavailable
	}
	return &domain.Session{Reference: parsed.Token, RedirectURL: parsed.RedirectURL}, nil
}

type statusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
}

func (a *Adapter) PollStatus(ctx context.Context, orderCode string) (domain.NormalizedStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/"+orderCode+"/status", nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(a.serverKey, "")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return NormalizeStatus(parsed.TransactionStatus), nil
}

type notificationPayload struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

func (a *Adapter) Verify(payload []byte, headers http.Header) error {
	var note notificationPayload
	if err := json.Unmarshal(payload, &note); err != nil {
		return domain.ErrInvalidPayload
	}
	if note.SignatureKey == "" || note.OrderID == "" {
		return domain.ErrInvalidSignature
	}

	digest := sha512.Sum512([]byte(note.OrderID + note.StatusCode + note.GrossAmount + a.serverKey))
	expected := hex.EncodeToString(digest[:])
	if !hmac.Equal([]byte(strings.ToLower(note.SignatureKey)), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(payload []byte) (*domain.Notification, error) {
	var note notificationPayload
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if note.OrderID == "" || note.TransactionStatus == "" {
		return nil, domain.ErrInvalidPayload
	}

	status := NormalizeStatus(note.TransactionStatus)
	if status == "" {
		return nil, domain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if note.TransactionTime != "" {
		if parsed, err := time.Parse("2006-01-02 15:04:05", note.TransactionTime); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	return &domain.Notification{
		Provider:      a.Provider(),
		OrderCode:     note.OrderID,
		Reference:     note.TransactionID,
		Status:        status,
		GatewayStatus: note.TransactionStatus,
		OccurredAt:    occurredAt,
		RawPayload:    payload,
	}, nil
}

// NormalizeStatus maps the gateway's status spellings onto the closed
// lifecycle vocabulary. Unknown spellings map to the empty string.
func NormalizeStatus(raw string) domain.NormalizedStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "capture", "settlement", "paid", "success":
		return domain.StatusPaid
	case "pending", "authorize":
		return domain.StatusPending
	case "deny", "cancel", "failure":
		return domain.StatusFailed
	case "expire", "expired":
		return domain.StatusExpired
	case "refund", "partial_refund", "chargeback":
		return domain.StatusRefunded
	default:
		return ""
	}
}

// Signature computes the notification digest; exported for tests and for
// local tooling that replays notifications.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	digest := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(digest[:])
}
