package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartorder/smartorder/internal/settings"
)

// storeInfo exposes the customer-facing store configuration.
func (s *Server) storeInfo(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"store_name":  s.settingsSvc.Get(ctx, settings.KeyStoreName, s.cfg.AppName),
		"store_open":  s.settingsSvc.GetBool(ctx, settings.KeyStoreOpen, true),
		"tax_percent": s.settingsSvc.TaxPercent(ctx),
	})
}
