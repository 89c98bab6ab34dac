package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type updateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) updateSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body is not valid JSON"))
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		AbortWithError(c, newValidationError("key", "required", "key is required"))
		return
	}

	if err := s.settingsSvc.Set(c.Request.Context(), req.Key, req.Value); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}

type resetQueueRequest struct {
	Date string `json:"date"`
}

// resetQueue zeroes the day's queue counter. Meant for operational recovery,
// not routine use; date-keyed counters restart on their own each day.
func (s *Server) resetQueue(c *gin.Context) {
	var req resetQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body is not valid JSON"))
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			AbortWithError(c, newValidationError("date", "invalid", "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	if err := s.queueSvc.Reset(c.Request.Context(), date); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format("2006-01-02")})
}
