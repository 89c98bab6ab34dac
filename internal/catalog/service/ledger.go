package service

import (
	"context"

	"github.com/smartorder/smartorder/internal/catalog/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger performs stock reservation and release. Both run inside the caller's
// transaction; atomicity across lines comes from the rollback, per-product
// serialization from the guarded UPDATE each decrement issues.
type Ledger struct {
	log  *zap.Logger
	repo domain.Repository
}

func NewLedger(log *zap.Logger, repo domain.Repository) domain.Ledger {
	return &Ledger{log: log.Named("catalog.ledger"), repo: repo}
}

func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, lines []domain.Line) ([]domain.StockAlert, error) {
	var alerts []domain.StockAlert
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}

		ok, err := l.repo.DecrementStock(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, l.classifyReserveFailure(ctx, tx, line)
		}

		after, err := l.repo.StockOf(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		before := after + line.Quantity
		if alert := crossingAlert(before, after); alert != nil {
			product, err := l.repo.FindByID(ctx, tx, line.ProductID)
			if err != nil {
				return nil, err
			}
			alert.ProductID = line.ProductID
			if product != nil {
				alert.ProductName = product.Name
			}
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, lines []domain.Line) ([]domain.StockAlert, error) {
	var alerts []domain.StockAlert
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if err := l.repo.IncrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
		after, err := l.repo.StockOf(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		before := after - line.Quantity
		if before <= domain.OutOfStockThreshold && after > domain.OutOfStockThreshold {
			product, err := l.repo.FindByID(ctx, tx, line.ProductID)
			if err != nil {
				return nil, err
			}
			alert := domain.StockAlert{ProductID: line.ProductID, Kind: domain.AlertRestocked, Stock: after}
			if product != nil {
				alert.ProductName = product.Name
			}
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// classifyReserveFailure turns a zero-row decrement into the precise error.
func (l *Ledger) classifyReserveFailure(ctx context.Context, tx *gorm.DB, line domain.Line) error {
	product, err := l.repo.FindByID(ctx, tx, line.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.ErrProductNotFound
	}
	if product.Closed {
		return domain.ErrProductClosed
	}
	return &domain.InsufficientStockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   line.Quantity,
		Available:   product.Stock,
	}
}

func crossingAlert(before, after int) *domain.StockAlert {
	switch {
	case before > domain.OutOfStockThreshold && after <= domain.OutOfStockThreshold:
		return &domain.StockAlert{Kind: domain.AlertOutOfStock, Stock: after}
	case before > domain.LowStockThreshold && after <= domain.LowStockThreshold:
		return &domain.StockAlert{Kind: domain.AlertLowStock, Stock: after}
	default:
		return nil
	}
}
