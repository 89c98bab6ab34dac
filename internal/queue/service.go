package queue

import (
	"context"
	"time"

	"github.com/smartorder/smartorder/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service issues daily-sequential queue numbers. Concurrent callers are
// serialized by the row lock the increment takes, and the unique key on date
// resolves the insert race between two first-of-the-day orders.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(gdb *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: gdb, log: log.Named("queue.service")}
}

// Next allocates the next queue number for the given date.
func (s *Service) Next(ctx context.Context, date time.Time) (int, error) {
	key := DateKey(date)
	var number int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.increment(ctx, tx, key)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

// NextTx allocates inside a caller-owned transaction so the number and the
// row that carries it commit or roll back together.
func (s *Service) NextTx(ctx context.Context, tx *gorm.DB, date time.Time) (int, error) {
	return s.increment(ctx, tx, DateKey(date))
}

// increment is dialect-aware: postgres and sqlite take a single atomic
// upsert, mysql its ON DUPLICATE KEY form. The first-order-of-the-day race
// resolves inside the statement, so it never surfaces to the caller.
func (s *Service) increment(ctx context.Context, tx *gorm.DB, key string) (int, error) {
	now := time.Now().UTC()

	switch tx.Dialector.Name() {
	case "postgres", "sqlite":
		var number int
		err := tx.WithContext(ctx).Raw(
			`INSERT INTO queue_counters (date, last_number, updated_at)
			 VALUES (?, 1, ?)
			 ON CONFLICT (date) DO UPDATE SET last_number = queue_counters.last_number + 1, updated_at = ?
			 RETURNING last_number`,
			key, now, now,
		).Scan(&number).Error
		if err != nil {
			return 0, err
		}
		return number, nil

	case "mysql":
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO queue_counters (date, last_number, updated_at)
			 VALUES (?, 1, ?)
			 ON DUPLICATE KEY UPDATE last_number = last_number + 1, updated_at = ?`,
			key, now, now,
		).Error; err != nil {
			return 0, err
		}

	default:
		if err := s.guardedIncrement(ctx, tx, key, now); err != nil {
			return 0, err
		}
	}

	// The row is locked by the statement above, so this read sees our value.
	var number int
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_number FROM queue_counters WHERE date = ?`, key,
	).Scan(&number).Error; err != nil {
		return 0, err
	}
	return number, nil
}

// guardedIncrement is the portable fallback for dialects without an upsert:
// guarded UPDATE, then an INSERT inside a savepoint so losing the first-row
// race cannot poison the caller's transaction, then one retry.
func (s *Service) guardedIncrement(ctx context.Context, tx *gorm.DB, key string, now time.Time) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE queue_counters SET last_number = last_number + 1, updated_at = ? WHERE date = ?`,
		now, key,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	insertErr := tx.Transaction(func(sp *gorm.DB) error {
		return sp.WithContext(ctx).Exec(
			`INSERT INTO queue_counters (date, last_number, updated_at) VALUES (?, 1, ?)`,
			key, now,
		).Error
	})
	if insertErr == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(insertErr) {
		return insertErr
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE queue_counters SET last_number = last_number + 1, updated_at = ? WHERE date = ?`,
		now, key,
	).Error
}

// PurgeBefore drops counter rows older than the given date. Counters are
// date-keyed so old rows are dead weight once the day has passed.
func (s *Service) PurgeBefore(ctx context.Context, date time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`DELETE FROM queue_counters WHERE date < ?`, DateKey(date),
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Reset zeroes the counter for the given date. Under date-keyed counters a
// new day starts at zero anyway; this exists for operational resets of the
// current day.
func (s *Service) Reset(ctx context.Context, date time.Time) error {
	key := DateKey(date)
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE queue_counters SET last_number = 0, updated_at = ? WHERE date = ?`,
		now, key,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Info("queue counter reset skipped, no counter for date", zap.String("date", key))
	}
	return nil
}
