package email

import (
	"github.com/smartorder/smartorder/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("email",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Provider {
		if cfg.SMTPHost == "" {
			return NewNoOp(log)
		}
		return NewSMTP(cfg)
	}),
)
