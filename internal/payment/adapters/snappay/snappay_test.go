package snappay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartorder/smartorder/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	adapter, err := New(Config{BaseURL: baseURL, ServerKey: "sk-test", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return adapter
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "https://api.snappay.test"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = New(Config{ServerKey: "sk-test"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.NormalizedStatus
	}{
		{"capture", domain.StatusPaid},
		{"settlement", domain.StatusPaid},
		{"SETTLEMENT", domain.StatusPaid},
		{"success", domain.StatusPaid},
		{"pending", domain.StatusPending},
		{"authorize", domain.StatusPending},
		{"deny", domain.StatusFailed},
		{"cancel", domain.StatusFailed},
		{"expire", domain.StatusExpired},
		{"refund", domain.StatusRefunded},
		{"chargeback", domain.StatusRefunded},
		{"something_new", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeStatus(tc.raw), "raw=%s", tc.raw)
	}
}

func notificationBody(t *testing.T, orderID, status, statusCode, gross, serverKey string) []byte {
	t.Helper()
	body := map[string]string{
		"order_id":           orderID,
		"transaction_id":     "txn-1",
		"transaction_status": status,
		"transaction_time":   "2026-08-30 10:15:00",
		"status_code":        statusCode,
		"gross_amount":       gross,
		"signature_key":      Signature(orderID, statusCode, gross, serverKey),
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	return encoded
}

func TestVerify(t *testing.T) {
	adapter := newTestAdapter(t, "https://api.snappay.test")

	payload := notificationBody(t, "ORD-001", "settlement", "200", "25000.00", "sk-test")
	assert.NoError(t, adapter.Verify(payload, http.Header{}))

	forged := notificationBody(t, "ORD-001", "settlement", "200", "25000.00", "wrong-key")
	assert.ErrorIs(t, adapter.Verify(forged, http.Header{}), domain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify([]byte(`{"order_id":"ORD-001"}`), http.Header{}), domain.ErrInvalidSignature)
	assert.ErrorIs(t, adapter.Verify([]byte(`not-json`), http.Header{}), domain.ErrInvalidPayload)
}

func TestParse(t *testing.T) {
	adapter := newTestAdapter(t, "https://api.snappay.test")

	note, err := adapter.Parse(notificationBody(t, "ORD-002", "settlement", "200", "15000.00", "sk-test"))
	require.NoError(t, err)
	assert.Equal(t, "snappay", note.Provider)
	assert.Equal(t, "ORD-002", note.OrderCode)
	assert.Equal(t, "txn-1", note.Reference)
	assert.Equal(t, domain.StatusPaid, note.Status)
	assert.Equal(t, "settlement", note.GatewayStatus)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC), note.OccurredAt)

	_, err = adapter.Parse(notificationBody(t, "ORD-002", "something_new", "200", "15000.00", "sk-test"))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)

	_, err = adapter.Parse([]byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestCreateSession(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        "snap-token-123",
			"redirect_url": "https://pay.snappay.test/snap-token-123",
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	session, err := adapter.CreateSession(context.Background(), domain.SessionRequest{
		OrderCode:    "ORD-003",
		Amount:       42000,
		CustomerName: "Budi",
	})
	require.NoError(t, err)
	assert.Equal(t, "/snap/v1/transactions", gotPath)
	assert.Equal(t, "snap-token-123", session.Reference)
	assert.Equal(t, "https://pay.snappay.test/snap-token-123", session.RedirectURL)

	details := gotBody["transaction_details"].(map[string]any)
	assert.Equal(t, "ORD-003", details["order_id"])
	assert.EqualValues(t, 42000, details["gross_amount"])
}

func TestCreateSession_GatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	_, err := adapter.CreateSession(context.Background(), domain.SessionRequest{OrderCode: "ORD-004", Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestPollStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/ORD-005/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"order_id":           "ORD-005",
			"transaction_status": "expire",
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	status, err := adapter.PollStatus(context.Background(), "ORD-005")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, status)
}
