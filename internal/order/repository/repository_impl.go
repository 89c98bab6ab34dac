package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smartorder/smartorder/internal/order/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "order_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&order, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindRecentByHash(ctx context.Context, db *gorm.DB, hash string, since time.Time) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("order_hash = ? AND last_attempt_at >= ?", hash, since).
		Order("last_attempt_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, from, to string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkPaid(ctx context.Context, db *gorm.DB, id int64, paidAt time.Time, gatewayStatus, reference string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?,
		     paid_at = ?,
		     gateway_status = CASE WHEN ? <> '' THEN ? ELSE gateway_status END,
		     gateway_reference = CASE WHEN ? <> '' THEN ? ELSE gateway_reference END,
		     status = CASE WHEN status = ? THEN ? ELSE status END,
		     updated_at = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentPaid,
		paidAt,
		gatewayStatus, gatewayStatus,
		reference, reference,
		domain.StatusPending, domain.StatusWaiting,
		time.Now().UTC(),
		id, domain.PaymentPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CancelUnpaid(ctx context.Context, db *gorm.DB, id int64, paymentStatus, reason string, requirePending bool) (bool, error) {
	query := `UPDATE orders
	 SET status = ?, payment_status = ?, cancellation_reason = ?, updated_at = ?
	 WHERE id = ? AND payment_status = ?`
	args := []any{
		domain.StatusCanceled, paymentStatus, reason, time.Now().UTC(),
		id, domain.PaymentPending,
	}
	if requirePending {
		query += ` AND status = ?`
		args = append(args, domain.StatusPending)
	} else {
		query += ` AND status NOT IN (?, ?)`
		args = append(args, domain.StatusCompleted, domain.StatusCanceled)
	}
	result := db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CancelAny(ctx context.Context, db *gorm.DB, id int64, reason string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?,
		     payment_status = CASE WHEN payment_status = ? THEN ? ELSE payment_status END,
		     cancellation_reason = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		domain.StatusCanceled,
		domain.PaymentPending, domain.PaymentFailed,
		reason, time.Now().UTC(),
		id, domain.StatusCompleted, domain.StatusCanceled,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CompleteCash(ctx context.Context, db *gorm.DB, id int64, amountReceived, change int64, paidAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, payment_status = ?, amount_received = ?, change_amount = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted, domain.PaymentPaid, amountReceived, change, paidAt, time.Now().UTC(),
		id, domain.StatusAwaitingConfirmation,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkEmailSent(ctx context.Context, db *gorm.DB, id int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET confirmation_email_sent_at = ? WHERE id = ? AND confirmation_email_sent_at IS NULL`,
		at, id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetGatewaySession(ctx context.Context, db *gorm.DB, id int64, reference, paymentURL, gatewayStatus string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET gateway_reference = ?, payment_url = ?, gateway_status = ?, updated_at = ? WHERE id = ?`,
		reference, paymentURL, gatewayStatus, time.Now().UTC(), id,
	).Error
}

func (r *repository) SetGatewayStatus(ctx context.Context, db *gorm.DB, id int64, gatewayStatus string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET gateway_status = ?, updated_at = ? WHERE id = ?`,
		gatewayStatus, time.Now().UTC(), id,
	).Error
}

func (r *repository) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("payment_method = ? AND status = ? AND payment_status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			domain.MethodOnline, domain.StatusPending, domain.PaymentPending, now).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
