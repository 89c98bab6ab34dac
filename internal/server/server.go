package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smartorder/smartorder/internal/catalog/domain"
	"github.com/smartorder/smartorder/internal/config"
	"github.com/smartorder/smartorder/internal/devicetoken"
	"github.com/smartorder/smartorder/internal/observability/logger"
	obsmetrics "github.com/smartorder/smartorder/internal/observability/metrics"
	orderdomain "github.com/smartorder/smartorder/internal/order/domain"
	"github.com/smartorder/smartorder/internal/payment/webhook"
	"github.com/smartorder/smartorder/internal/queue"
	"github.com/smartorder/smartorder/internal/settings"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, m *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	metrics      *obsmetrics.Metrics
	orderSvc     orderdomain.Service
	catalogSvc   catalogdomain.Service
	webhookSvc   *webhook.Service
	deviceTokens *devicetoken.Service
	settingsSvc  *settings.Service
	queueSvc     *queue.Service
}

type Params struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Metrics      *obsmetrics.Metrics
	OrderSvc     orderdomain.Service
	CatalogSvc   catalogdomain.Service
	WebhookSvc   *webhook.Service
	DeviceTokens *devicetoken.Service
	SettingsSvc  *settings.Service
	QueueSvc     *queue.Service
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		metrics:      p.Metrics,
		orderSvc:     p.OrderSvc,
		catalogSvc:   p.CatalogSvc,
		webhookSvc:   p.WebhookSvc,
		deviceTokens: p.DeviceTokens,
		settingsSvc:  p.SettingsSvc,
		queueSvc:     p.QueueSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/checkout/idempotency-key", s.issueIdempotencyKey)
	api.POST("/checkout", s.checkout)

	api.GET("/orders/:id", s.getOrder)
	api.POST("/orders/:id/advance", s.advanceOrder)
	api.POST("/orders/:id/confirm-cash", s.confirmCash)
	api.POST("/orders/:id/cancel", s.cancelOrder)
	api.POST("/orders/:id/refresh-payment", s.refreshPayment)

	api.POST("/payments/webhook/:provider", s.paymentWebhook)

	api.GET("/stock/alerts", s.stockAlerts)
	api.POST("/device-tokens", s.registerDeviceToken)
	api.GET("/store", s.storeInfo)

	api.POST("/admin/settings", s.updateSetting)
	api.POST("/admin/queue/reset", s.resetQueue)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
