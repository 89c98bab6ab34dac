package domain

import (
	"context"

	"gorm.io/gorm"
)

// Ledger reserves and releases stock inside the caller's transaction so a
// failed order creation rolls the reservation back with everything else.
type Ledger interface {
	// Reserve decrements stock for every line or none of them. The returned
	// alerts describe threshold crossings and must be published by the caller
	// only after the surrounding transaction commits.
	Reserve(ctx context.Context, tx *gorm.DB, lines []Line) ([]StockAlert, error)
	// Release reverses a reservation (cancellation, expiration).
	Release(ctx context.Context, tx *gorm.DB, lines []Line) ([]StockAlert, error)
}

type Service interface {
	Get(ctx context.Context, id int64) (*Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
	Alerts(ctx context.Context) (*AlertsSnapshot, error)
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Product, error)
	// DecrementStock applies a guarded decrement and reports whether a row
	// was affected. Zero rows means missing, closed, or insufficient stock.
	DecrementStock(ctx context.Context, db *gorm.DB, id int64, quantity int) (bool, error)
	IncrementStock(ctx context.Context, db *gorm.DB, id int64, quantity int) error
	StockOf(ctx context.Context, db *gorm.DB, id int64) (int, error)
	ListByStockAtMost(ctx context.Context, db *gorm.DB, max int) ([]Product, error)
	ListClosed(ctx context.Context, db *gorm.DB) ([]Product, error)
}
