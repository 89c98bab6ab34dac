package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smartorder/smartorder/internal/discount/domain"
	"github.com/smartorder/smartorder/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("discount.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (*domain.Application, error) {
	code := strings.TrimSpace(req.Code)

	switch {
	case code != "":
		d, err := s.repo.FindByCode(ctx, s.db, code)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, domain.ErrNotFound
		}
		if err := s.eligible(ctx, *d, req); err != nil {
			return nil, err
		}
		return &domain.Application{Discount: *d, Amount: Amount(req.Subtotal, d.Percentage)}, nil

	case req.DiscountID != 0:
		d, err := s.repo.FindByID(ctx, s.db, req.DiscountID)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, domain.ErrNotFound
		}
		if d.RequiresCode {
			return nil, domain.ErrCodeRequired
		}
		if err := s.eligible(ctx, *d, req); err != nil {
			return nil, err
		}
		return &domain.Application{Discount: *d, Amount: Amount(req.Subtotal, d.Percentage)}, nil

	default:
		// Codeless discounts apply automatically to the best eligible match.
		candidates, err := s.repo.ListAutoApply(ctx, s.db)
		if err != nil {
			return nil, err
		}
		var best *domain.Application
		for _, d := range candidates {
			if err := s.eligible(ctx, d, req); err != nil {
				continue
			}
			app := &domain.Application{Discount: d, Amount: Amount(req.Subtotal, d.Percentage)}
			if best == nil || app.Amount > best.Amount {
				best = app
			}
		}
		return best, nil
	}
}

func (s *Service) eligible(ctx context.Context, d domain.Discount, req domain.EvaluateRequest) error {
	if !d.Active {
		return domain.ErrInactive
	}
	now := req.Now
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return domain.ErrOutOfWindow
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return domain.ErrOutOfWindow
	}
	if !withinDailyWindow(d.TimeFrom, d.TimeUntil, now) {
		return domain.ErrOutOfWindow
	}
	if req.Subtotal < d.MinPurchase {
		return domain.ErrBelowMinimum
	}

	key := customerKey(req.CustomerKey, req.DeviceID)
	if key != "" {
		used, err := s.repo.HasUsage(ctx, s.db, d.ID, key)
		if err != nil {
			return err
		}
		if used {
			return domain.ErrAlreadyUsed
		}
	}
	return nil
}

func (s *Service) RecordUsage(ctx context.Context, tx *gorm.DB, discountID int64, custKey, deviceID string, orderID int64) error {
	key := customerKey(custKey, deviceID)
	usage := &domain.Usage{
		ID:          s.genID.Generate().Int64(),
		DiscountID:  discountID,
		CustomerKey: key,
		OrderID:     &orderID,
		CreatedAt:   time.Now().UTC(),
	}
	if deviceID != "" {
		usage.DeviceID = &deviceID
	}
	if err := s.repo.InsertUsage(ctx, tx, usage); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyUsed
		}
		return err
	}
	return nil
}

func (s *Service) DeactivateEnded(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.repo.DeactivateEnded(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("deactivated ended discounts", zap.Int64("count", count))
	}
	return count, nil
}

// Amount computes the discount in minor units, rounded half-up.
func Amount(subtotal int64, percentage float64) int64 {
	if subtotal <= 0 || percentage <= 0 {
		return 0
	}
	return int64(math.Floor(float64(subtotal)*percentage/100 + 0.5))
}

// customerKey prefers the customer identity and falls back to the device.
func customerKey(customer, device string) string {
	if c := strings.TrimSpace(customer); c != "" {
		return c
	}
	return strings.TrimSpace(device)
}

// withinDailyWindow checks the optional time-of-day range, inclusive on both
// ends. Times are "HH:MM" strings; a malformed bound disables the check.
func withinDailyWindow(from, until *string, now time.Time) bool {
	if from == nil || until == nil {
		return true
	}
	parse := func(v string) (int, bool) {
		t, err := time.Parse("15:04", strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return t.Hour()*60 + t.Minute(), true
	}
	lo, ok := parse(*from)
	if !ok {
		return true
	}
	hi, ok := parse(*until)
	if !ok {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if lo <= hi {
		return cur >= lo && cur <= hi
	}
	// Window wraps midnight.
	return cur >= lo || cur <= hi
}
