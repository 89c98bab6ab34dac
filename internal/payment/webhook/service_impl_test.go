package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smartorder/smartorder/internal/payment/adapters"
	"github.com/smartorder/smartorder/internal/payment/adapters/snappay"
	"github.com/smartorder/smartorder/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testServerKey = "sk-webhook-test"

type recordingApplier struct {
	mu    sync.Mutex
	calls []appliedStatus
	err   error
}

type appliedStatus struct {
	OrderCode string
	Status    domain.NormalizedStatus
}

func (a *recordingApplier) ApplyPaymentStatus(ctx context.Context, orderCode string, status domain.NormalizedStatus, gatewayStatus, reference string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, appliedStatus{OrderCode: orderCode, Status: status})
	return a.err
}

func newTestService(t *testing.T, applier *recordingApplier) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.Exec(`CREATE TABLE IF NOT EXISTS payment_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		order_code TEXT NOT NULL,
		gateway_status TEXT NOT NULL,
		normalized_status TEXT NOT NULL,
		payload TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		process_error TEXT
	)`).Error)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	adapter, err := snappay.New(snappay.Config{
		BaseURL:   "https://api.snappay.test",
		ServerKey: testServerKey,
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       gdb,
		Log:      zap.NewNop(),
		GenID:    node,
		Adapters: adapters.NewRegistry(adapter),
		Applier:  applier,
	})
	return svc, gdb
}

func signedPayload(t *testing.T, orderCode, status string) []byte {
	t.Helper()
	body := map[string]string{
		"order_id":           orderCode,
		"transaction_id":     "txn-77",
		"transaction_status": status,
		"status_code":        "200",
		"gross_amount":       "50000.00",
		"signature_key":      snappay.Signature(orderCode, "200", "50000.00", testServerKey),
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	return encoded
}

func eventCount(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, gdb.Raw(`SELECT COUNT(*) FROM payment_events`).Scan(&count).Error)
	return count
}

func TestIngestUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, &recordingApplier{})
	err := svc.Ingest(context.Background(), "nopay", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	applier := &recordingApplier{}
	svc, gdb := newTestService(t, applier)

	payload := []byte(`{"order_id":"ORD-1","transaction_status":"settlement","status_code":"200","gross_amount":"1.00","signature_key":"forged"}`)
	err := svc.Ingest(context.Background(), "snappay", payload, http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// Nothing recorded, nothing applied.
	assert.Zero(t, eventCount(t, gdb))
	assert.Empty(t, applier.calls)
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	svc, _ := newTestService(t, &recordingApplier{})
	err := svc.Ingest(context.Background(), "snappay", []byte(`not-json`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestIngestAppliesVerifiedNotification(t *testing.T) {
	applier := &recordingApplier{}
	svc, gdb := newTestService(t, applier)

	err := svc.Ingest(context.Background(), "snappay", signedPayload(t, "ORD-55", "settlement"), http.Header{})
	require.NoError(t, err)

	require.Len(t, applier.calls, 1)
	assert.Equal(t, "ORD-55", applier.calls[0].OrderCode)
	assert.Equal(t, domain.StatusPaid, applier.calls[0].Status)

	var record domain.EventRecord
	require.NoError(t, gdb.First(&record).Error)
	assert.Equal(t, "snappay", record.Provider)
	assert.Equal(t, "ORD-55", record.OrderCode)
	assert.Equal(t, "settlement", record.GatewayStatus)
	assert.NotNil(t, record.ProcessedAt)
	assert.Nil(t, record.ProcessError)
}

func TestIngestSwallowsProcessingFailure(t *testing.T) {
	applier := &recordingApplier{err: errors.New("order lookup failed")}
	svc, gdb := newTestService(t, applier)

	// The receipt is durable, so the gateway gets a 200 and stops retrying.
	err := svc.Ingest(context.Background(), "snappay", signedPayload(t, "ORD-56", "expire"), http.Header{})
	require.NoError(t, err)

	var record domain.EventRecord
	require.NoError(t, gdb.First(&record).Error)
	require.NotNil(t, record.ProcessError)
	assert.Equal(t, "order lookup failed", *record.ProcessError)
}

func TestIngestIgnoresUnknownStatuses(t *testing.T) {
	applier := &recordingApplier{}
	svc, gdb := newTestService(t, applier)

	err := svc.Ingest(context.Background(), "snappay", signedPayload(t, "ORD-57", "mystery_status"), http.Header{})
	require.NoError(t, err)
	assert.Zero(t, eventCount(t, gdb))
	assert.Empty(t, applier.calls)
}
