package devicetoken

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("device_token_not_found")

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) *Service {
	return &Service{db: db, log: log.Named("devicetoken"), genID: genID}
}

// Register stores a push token for the customer and revokes every prior
// token, so a customer is ever reachable on one device only.
func (s *Service) Register(ctx context.Context, customerKey, deviceID, token string) (*DeviceToken, error) {
	now := time.Now().UTC()
	record := &DeviceToken{
		ID:          s.genID.Generate().Int64(),
		CustomerKey: customerKey,
		DeviceID:    deviceID,
		Token:       token,
		CreatedAt:   now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`UPDATE device_tokens SET revoked_at = ? WHERE customer_key = ? AND revoked_at IS NULL`,
			now, customerKey,
		).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Active returns the customer's current push token, if any. A missing token
// is a normal condition, not an error for callers to propagate.
func (s *Service) Active(ctx context.Context, customerKey string) (*DeviceToken, error) {
	var record DeviceToken
	err := s.db.WithContext(ctx).
		Where("customer_key = ? AND revoked_at IS NULL", customerKey).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Revoke drops the customer's active token, used on logout.
func (s *Service) Revoke(ctx context.Context, customerKey string) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE device_tokens SET revoked_at = ? WHERE customer_key = ? AND revoked_at IS NULL`,
		time.Now().UTC(), customerKey,
	).Error
}
