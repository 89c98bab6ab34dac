package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartorder/smartorder/internal/config"
	"github.com/smartorder/smartorder/internal/observability/logger"
	"github.com/smartorder/smartorder/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) logger.Config {
		return logger.Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
			Version:     cfg.AppVersion,
		}
	}),
	fx.Provide(logger.New),
	fx.Provide(func() *prometheus.Registry { return prometheus.NewRegistry() }),
	fx.Provide(func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) }),
)
