package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smartorder/smartorder/internal/payment/domain"
	"go.uber.org/zap"
)

// paymentWebhook ingests a gateway notification. The gateway retries on any
// non-2xx, so after the receipt is durably recorded the handler answers 200
// even when downstream processing failed; only integrity failures are
// rejected.
func (s *Server) paymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		s.metrics.WebhookTotal.WithLabelValues(provider, "read_error").Inc()
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	err = s.webhookSvc.Ingest(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		s.metrics.WebhookTotal.WithLabelValues(provider, "accepted").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		s.metrics.WebhookTotal.WithLabelValues(provider, "invalid_signature").Inc()
		s.log.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("client_ip", c.ClientIP()),
		)
		AbortWithError(c, err)
	default:
		s.metrics.WebhookTotal.WithLabelValues(provider, "rejected").Inc()
		AbortWithError(c, err)
	}
}
