package order

import (
	"github.com/smartorder/smartorder/internal/order/domain"
	"github.com/smartorder/smartorder/internal/order/repository"
	"github.com/smartorder/smartorder/internal/order/service"
	"github.com/smartorder/smartorder/internal/payment/webhook"

	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) webhook.StatusApplier { return s }),
)
