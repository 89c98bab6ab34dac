package service

import (
	"context"

	"github.com/smartorder/smartorder/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	items, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Product, len(items))
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Service) Alerts(ctx context.Context) (*domain.AlertsSnapshot, error) {
	low, err := s.repo.ListByStockAtMost(ctx, s.db, domain.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	closed, err := s.repo.ListClosed(ctx, s.db)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.AlertsSnapshot{Closed: closed}
	for _, p := range low {
		if p.Stock <= domain.OutOfStockThreshold {
			snapshot.OutOfStock = append(snapshot.OutOfStock, p)
			continue
		}
		snapshot.LowStock = append(snapshot.LowStock, p)
	}
	return snapshot, nil
}
