package settings

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is a DB-backed key-value store with an in-process cache. Reads hit
// the cache; Set writes through and refreshes the cached entry. Reload pulls
// the whole table, for processes that want to pick up edits made elsewhere.
type Service struct {
	db  *gorm.DB
	log *zap.Logger

	mu     sync.RWMutex
	values map[string]string
	loaded bool
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{
		db:     db,
		log:    log.Named("settings"),
		values: make(map[string]string),
	}
}

func (s *Service) Get(ctx context.Context, key, def string) string {
	s.mu.RLock()
	loaded := s.loaded
	value, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return value
	}
	if !loaded {
		if err := s.Reload(ctx); err != nil {
			s.log.Warn("settings reload failed", zap.Error(err))
			return def
		}
		s.mu.RLock()
		value, ok = s.values[key]
		s.mu.RUnlock()
		if ok {
			return value
		}
	}
	return def
}

func (s *Service) GetFloat(ctx context.Context, key string, def float64) float64 {
	raw := s.Get(ctx, key, "")
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.log.Warn("setting is not numeric", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return parsed
}

func (s *Service) GetBool(ctx context.Context, key string, def bool) bool {
	raw := s.Get(ctx, key, "")
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

// TaxPercent is the percentage applied to the discounted subtotal at
// checkout. Zero when unset.
func (s *Service) TaxPercent(ctx context.Context) float64 {
	return s.GetFloat(ctx, KeyTaxPercent, 0)
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	row := Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Service) Reload(ctx context.Context) error {
	var rows []Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}
	fresh := make(map[string]string, len(rows))
	for _, row := range rows {
		fresh[row.Key] = row.Value
	}
	s.mu.Lock()
	s.values = fresh
	s.loaded = true
	s.mu.Unlock()
	return nil
}
