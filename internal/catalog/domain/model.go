package domain

import "time"

// Stock alert thresholds. Fixed global values, matching the product decision
// to keep a single low-stock boundary rather than per-product settings.
const (
	OutOfStockThreshold = 0
	LowStockThreshold   = 20
)

type Product struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	Price     int64     `json:"price" gorm:"not null"`
	Stock     int       `json:"stock" gorm:"not null;default:0"`
	Closed    bool      `json:"closed" gorm:"not null;default:false"`
	ImagePath *string   `json:"image_path,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Line is one reservation request against a product.
type Line struct {
	ProductID int64
	Quantity  int
}

const (
	AlertOutOfStock = "out_of_stock"
	AlertLowStock   = "low_stock"
	AlertRestocked  = "restocked"
)

// StockAlert fires only when stock crosses a threshold, not on every update.
type StockAlert struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Kind        string `json:"kind"`
	Stock       int    `json:"stock"`
}

// AlertsSnapshot is the poll fallback for clients that missed broadcasts.
type AlertsSnapshot struct {
	OutOfStock []Product `json:"out_of_stock"`
	LowStock   []Product `json:"low_stock"`
	Closed     []Product `json:"closed"`
}
