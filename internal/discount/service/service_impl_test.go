package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smartorder/smartorder/internal/discount/domain"
	"github.com/smartorder/smartorder/internal/discount/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.Exec(`CREATE TABLE IF NOT EXISTS discounts (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		percentage REAL NOT NULL,
		min_purchase BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		requires_code BOOLEAN NOT NULL DEFAULT FALSE,
		valid_from TIMESTAMP,
		valid_until TIMESTAMP,
		time_from TEXT,
		time_until TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error)
	require.NoError(t, gdb.Exec(`CREATE TABLE IF NOT EXISTS discount_usages (
		id BIGINT PRIMARY KEY,
		discount_id BIGINT NOT NULL,
		customer_key TEXT NOT NULL,
		device_id TEXT,
		order_id BIGINT,
		created_at TIMESTAMP NOT NULL
	)`).Error)
	require.NoError(t, gdb.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_discount_usages ON discount_usages (discount_id, customer_key)`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{DB: gdb, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
	return svc, gdb
}

func seedDiscount(t *testing.T, gdb *gorm.DB, d domain.Discount) {
	t.Helper()
	require.NoError(t, gdb.Exec(
		`INSERT INTO discounts (id, name, code, percentage, min_purchase, active, requires_code,
			valid_from, valid_until, time_from, time_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		d.ID, d.Name, d.Code, d.Percentage, d.MinPurchase, d.Active, d.RequiresCode,
		d.ValidFrom, d.ValidUntil, d.TimeFrom, d.TimeUntil,
	).Error)
}

func strPtr(s string) *string { return &s }

func TestEvaluateByCode(t *testing.T) {
	svc, gdb := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedDiscount(t, gdb, domain.Discount{
		ID: 1, Name: "Grand Opening", Code: strPtr("OPEN10"),
		Percentage: 10, MinPurchase: 50000, Active: true, RequiresCode: true,
	})

	t.Run("eligible", func(t *testing.T) {
		app, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "open10", Subtotal: 100000, CustomerKey: "cust-1", Now: now,
		})
		require.NoError(t, err)
		require.NotNil(t, app)
		assert.Equal(t, int64(10000), app.Amount)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "NOPE", Subtotal: 100000, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("below minimum", func(t *testing.T) {
		_, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "OPEN10", Subtotal: 40000, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	})
}

func TestEvaluateWindows(t *testing.T) {
	svc, gdb := newTestService(t)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	seedDiscount(t, gdb, domain.Discount{
		ID: 1, Name: "June Promo", Code: strPtr("JUNE"),
		Percentage: 15, Active: true, RequiresCode: true,
		ValidFrom: &from, ValidUntil: &until,
	})
	seedDiscount(t, gdb, domain.Discount{
		ID: 2, Name: "Lunch Hour", Code: strPtr("LUNCH"),
		Percentage: 20, Active: true, RequiresCode: true,
		TimeFrom: strPtr("11:00"), TimeUntil: strPtr("14:00"),
	})

	t.Run("before date window", func(t *testing.T) {
		_, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "JUNE", Subtotal: 100000,
			Now: time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC),
		})
		assert.ErrorIs(t, err, domain.ErrOutOfWindow)
	})

	t.Run("inside daily window", func(t *testing.T) {
		app, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "LUNCH", Subtotal: 100000,
			Now: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(20000), app.Amount)
	})

	t.Run("outside daily window", func(t *testing.T) {
		_, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
			Code: "LUNCH", Subtotal: 100000,
			Now: time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC),
		})
		assert.ErrorIs(t, err, domain.ErrOutOfWindow)
	})
}

func TestAutoApplyPicksBestEligible(t *testing.T) {
	svc, gdb := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedDiscount(t, gdb, domain.Discount{ID: 1, Name: "Five", Percentage: 5, Active: true})
	seedDiscount(t, gdb, domain.Discount{ID: 2, Name: "Ten", Percentage: 10, Active: true})
	seedDiscount(t, gdb, domain.Discount{ID: 3, Name: "Big Spender", Percentage: 25, MinPurchase: 1000000, Active: true})

	app, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
		Subtotal: 100000, CustomerKey: "cust-1", Now: now,
	})
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "Ten", app.Discount.Name)
	assert.Equal(t, int64(10000), app.Amount)
}

func TestEvaluateIsPureAndUsageBlocksReuse(t *testing.T) {
	svc, gdb := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedDiscount(t, gdb, domain.Discount{
		ID: 1, Name: "Once", Code: strPtr("ONCE"), Percentage: 10, Active: true, RequiresCode: true,
	})
	req := domain.EvaluateRequest{Code: "ONCE", Subtotal: 80000, CustomerKey: "cust-1", Now: now}

	first, err := svc.Evaluate(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Amount, second.Amount, "evaluation must not consume the redemption")

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(context.Background(), tx, 1, "cust-1", "", 42)
	}))

	_, err = svc.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed)

	// The unique index backs up the evaluation-time check.
	err = gdb.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(context.Background(), tx, 1, "cust-1", "", 43)
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed)
}

func TestDeviceFallbackWhenCustomerAbsent(t *testing.T) {
	svc, gdb := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedDiscount(t, gdb, domain.Discount{
		ID: 1, Name: "Device Bound", Code: strPtr("DEV"), Percentage: 10, Active: true, RequiresCode: true,
	})

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return svc.RecordUsage(context.Background(), tx, 1, "", "device-9", 42)
	}))

	_, err := svc.Evaluate(context.Background(), domain.EvaluateRequest{
		Code: "DEV", Subtotal: 80000, DeviceID: "device-9", Now: now,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed)
}

func TestAmountRoundsHalfUp(t *testing.T) {
	// 12.5% of 999 = 124.875 -> 125
	assert.Equal(t, int64(125), Amount(999, 12.5))
	// 10% of 15 = 1.5 -> 2
	assert.Equal(t, int64(2), Amount(15, 10))
	// 10% of 14 = 1.4 -> 1
	assert.Equal(t, int64(1), Amount(14, 10))
	assert.Equal(t, int64(0), Amount(0, 10))
}

func TestDeactivateEnded(t *testing.T) {
	svc, gdb := newTestService(t)
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	seedDiscount(t, gdb, domain.Discount{ID: 1, Name: "Ended", Percentage: 10, Active: true, ValidUntil: &past})
	seedDiscount(t, gdb, domain.Discount{ID: 2, Name: "Running", Percentage: 10, Active: true, ValidUntil: &future})
	seedDiscount(t, gdb, domain.Discount{ID: 3, Name: "Open Ended", Percentage: 10, Active: true})

	count, err := svc.DeactivateEnded(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var active int
	require.NoError(t, gdb.Raw(`SELECT COUNT(1) FROM discounts WHERE active = ?`, true).Scan(&active).Error)
	assert.Equal(t, 2, active)
}
