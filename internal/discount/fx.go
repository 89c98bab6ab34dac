package discount

import (
	"github.com/smartorder/smartorder/internal/discount/repository"
	"github.com/smartorder/smartorder/internal/discount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("discount",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
