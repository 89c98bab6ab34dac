package push

import (
	"github.com/smartorder/smartorder/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("push",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Provider {
		if cfg.PushEndpoint == "" {
			return NewNoOp(log)
		}
		return NewHTTP(cfg)
	}),
)
