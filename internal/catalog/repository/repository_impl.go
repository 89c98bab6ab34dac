package repository

import (
	"context"

	"github.com/smartorder/smartorder/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, closed, image_path, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, closed, image_path, created_at, updated_at
		 FROM products WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, id int64, quantity int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND closed = ? AND stock >= ?`,
		quantity, id, false, quantity,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) IncrementStock(ctx context.Context, db *gorm.DB, id int64, quantity int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		quantity, id,
	).Error
}

func (r *repo) StockOf(ctx context.Context, db *gorm.DB, id int64) (int, error) {
	var stock int
	err := db.WithContext(ctx).Raw(
		`SELECT stock FROM products WHERE id = ?`, id,
	).Scan(&stock).Error
	return stock, err
}

func (r *repo) ListByStockAtMost(ctx context.Context, db *gorm.DB, max int) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, closed, image_path, created_at, updated_at
		 FROM products WHERE closed = ? AND stock <= ? ORDER BY stock ASC, name ASC`,
		false, max,
	).Scan(&items).Error
	return items, err
}

func (r *repo) ListClosed(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock, closed, image_path, created_at, updated_at
		 FROM products WHERE closed = ? ORDER BY name ASC`,
		true,
	).Scan(&items).Error
	return items, err
}
