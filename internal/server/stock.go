package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// stockAlerts is the snapshot fallback for staff clients that reconnect
// after missing broadcast events.
func (s *Server) stockAlerts(c *gin.Context) {
	snapshot, err := s.catalogSvc.Alerts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type registerTokenRequest struct {
	CustomerKey string `json:"customer_key"`
	DeviceID    string `json:"device_id"`
	Token       string `json:"token"`
}

func (s *Server) registerDeviceToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body is not valid JSON"))
		return
	}
	if strings.TrimSpace(req.CustomerKey) == "" || strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "customer_key and token are required"))
		return
	}

	record, err := s.deviceTokens.Register(c.Request.Context(), req.CustomerKey, req.DeviceID, req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}
