package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smartorder/smartorder/internal/discount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const discountColumns = `id, name, code, percentage, min_purchase, active, requires_code,
	valid_from, valid_until, time_from, time_until, created_at, updated_at`

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Discount, error) {
	var d domain.Discount
	err := db.WithContext(ctx).Raw(
		`SELECT `+discountColumns+` FROM discounts WHERE LOWER(code) = ?`,
		strings.ToLower(strings.TrimSpace(code)),
	).Scan(&d).Error
	if err != nil {
		return nil, err
	}
	if d.ID == 0 {
		return nil, nil
	}
	return &d, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Discount, error) {
	var d domain.Discount
	err := db.WithContext(ctx).Raw(
		`SELECT `+discountColumns+` FROM discounts WHERE id = ?`, id,
	).Scan(&d).Error
	if err != nil {
		return nil, err
	}
	if d.ID == 0 {
		return nil, nil
	}
	return &d, nil
}

func (r *repo) ListAutoApply(ctx context.Context, db *gorm.DB) ([]domain.Discount, error) {
	var items []domain.Discount
	err := db.WithContext(ctx).Raw(
		`SELECT `+discountColumns+` FROM discounts
		 WHERE active = ? AND requires_code = ?
		 ORDER BY percentage DESC, id ASC`,
		true, false,
	).Scan(&items).Error
	return items, err
}

func (r *repo) HasUsage(ctx context.Context, db *gorm.DB, discountID int64, customerKey string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM discount_usages WHERE discount_id = ? AND customer_key = ?`,
		discountID, customerKey,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.Usage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO discount_usages (id, discount_id, customer_key, device_id, order_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		usage.ID,
		usage.DiscountID,
		usage.CustomerKey,
		usage.DeviceID,
		usage.OrderID,
		usage.CreatedAt,
	).Error
}

func (r *repo) DeactivateEnded(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE discounts SET active = ?, updated_at = ?
		 WHERE active = ? AND valid_until IS NOT NULL AND valid_until < ?`,
		false, now, true, now,
	)
	return result.RowsAffected, result.Error
}
