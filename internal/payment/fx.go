package payment

import (
	"github.com/smartorder/smartorder/internal/config"
	"github.com/smartorder/smartorder/internal/payment/adapters"
	"github.com/smartorder/smartorder/internal/payment/adapters/fakepay"
	"github.com/smartorder/smartorder/internal/payment/adapters/snappay"
	"github.com/smartorder/smartorder/internal/payment/domain"
	"github.com/smartorder/smartorder/internal/payment/webhook"
	"go.uber.org/zap"

	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(NewRegistry),
	fx.Provide(webhook.NewService),
)

// NewRegistry wires the configured gateway adapters. The snappay adapter is
// skipped when no server key is configured; fakepay is always available for
// local development.
func NewRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	var list []domain.Adapter

	snap, err := snappay.New(snappay.Config{
		BaseURL:   cfg.GatewayBaseURL,
		ServerKey: cfg.GatewayServerKey,
		Timeout:   cfg.GatewayTimeout,
	})
	if err != nil {
		log.Warn("snappay adapter not configured", zap.Error(err))
	} else {
		list = append(list, snap)
	}

	list = append(list, fakepay.New())
	return adapters.NewRegistry(list...)
}
