package catalog

import (
	"github.com/smartorder/smartorder/internal/catalog/repository"
	"github.com/smartorder/smartorder/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewLedger),
)
