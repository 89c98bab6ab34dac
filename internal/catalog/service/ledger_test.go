package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smartorder/smartorder/internal/catalog/domain"
	"github.com/smartorder/smartorder/internal/catalog/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.Exec(`CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		price BIGINT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		image_path TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error)
	return gdb
}

func seedProduct(t *testing.T, gdb *gorm.DB, id int64, name string, stock int, closed bool) {
	t.Helper()
	require.NoError(t, gdb.Exec(
		`INSERT INTO products (id, name, price, stock, closed) VALUES (?, ?, 25000, ?, ?)`,
		id, name, stock, closed,
	).Error)
}

func stockOf(t *testing.T, gdb *gorm.DB, id int64) int {
	t.Helper()
	var stock int
	require.NoError(t, gdb.Raw(`SELECT stock FROM products WHERE id = ?`, id).Scan(&stock).Error)
	return stock
}

func TestReserveAllOrNothing(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(zap.NewNop(), repository.Provide())
	ctx := context.Background()

	seedProduct(t, gdb, 1, "Nasi Goreng", 10, false)
	seedProduct(t, gdb, 2, "Es Teh", 1, false)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(ctx, tx, []domain.Line{
			{ProductID: 1, Quantity: 3},
			{ProductID: 2, Quantity: 2}, // only 1 in stock
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	var detail *domain.InsufficientStockError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, "Es Teh", detail.ProductName)
	assert.Equal(t, 2, detail.Requested)
	assert.Equal(t, 1, detail.Available)

	// Rollback must leave the first line untouched too.
	assert.Equal(t, 10, stockOf(t, gdb, 1))
	assert.Equal(t, 1, stockOf(t, gdb, 2))
}

func TestReserveClosedProductRejected(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(zap.NewNop(), repository.Provide())

	seedProduct(t, gdb, 1, "Soto", 5, true)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(context.Background(), tx, []domain.Line{{ProductID: 1, Quantity: 1}})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrProductClosed)
	assert.Equal(t, 5, stockOf(t, gdb, 1))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(zap.NewNop(), repository.Provide())

	const stock = 5
	const attempts = 12
	seedProduct(t, gdb, 1, "Ayam Bakar", stock, false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, failed := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gdb.Transaction(func(tx *gorm.DB) error {
				_, err := ledger.Reserve(context.Background(), tx, []domain.Line{{ProductID: 1, Quantity: 1}})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			require.True(t, errors.Is(err, domain.ErrInsufficientStock), "unexpected error: %v", err)
			failed++
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, attempts-stock, failed)
	assert.Equal(t, 0, stockOf(t, gdb, 1))
}

func TestAlertsFireOnlyOnCrossing(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(zap.NewNop(), repository.Provide())
	ctx := context.Background()

	seedProduct(t, gdb, 1, "Bakso", 22, false)

	reserve := func(qty int) []domain.StockAlert {
		var alerts []domain.StockAlert
		require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
			var err error
			alerts, err = ledger.Reserve(ctx, tx, []domain.Line{{ProductID: 1, Quantity: qty}})
			return err
		}))
		return alerts
	}

	// 22 -> 21: no crossing.
	assert.Empty(t, reserve(1))
	// 21 -> 20: crosses low-stock.
	alerts := reserve(1)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertLowStock, alerts[0].Kind)
	assert.Equal(t, 20, alerts[0].Stock)
	// 20 -> 15: below the threshold already, no repeat alert.
	assert.Empty(t, reserve(5))
	// 15 -> 0: crosses out-of-stock.
	alerts = reserve(15)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertOutOfStock, alerts[0].Kind)
	assert.Equal(t, "Bakso", alerts[0].ProductName)
}

func TestReleaseRestocksAndAlerts(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewLedger(zap.NewNop(), repository.Provide())
	ctx := context.Background()

	seedProduct(t, gdb, 1, "Mie Ayam", 2, false)

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(ctx, tx, []domain.Line{{ProductID: 1, Quantity: 2}})
		return err
	}))
	assert.Equal(t, 0, stockOf(t, gdb, 1))

	var alerts []domain.StockAlert
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		alerts, err = ledger.Release(ctx, tx, []domain.Line{{ProductID: 1, Quantity: 2}})
		return err
	}))
	assert.Equal(t, 2, stockOf(t, gdb, 1))
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertRestocked, alerts[0].Kind)
}
