package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "order id must be an integer"))
		return 0, false
	}
	return id, true
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// staffActor names the staff member for transition logs. Clients that do not
// identify the operator fall back to a generic label.
func staffActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "staff"
	}
	return actor
}

type advanceRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) advanceOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req advanceRequest
	_ = c.ShouldBindJSON(&req)

	order, err := s.orderSvc.Advance(c.Request.Context(), id, staffActor(req.Actor))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type confirmCashRequest struct {
	AmountReceived int64  `json:"amount_received"`
	Actor          string `json:"actor"`
}

func (s *Server) confirmCash(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req confirmCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body is not valid JSON"))
		return
	}
	if req.AmountReceived <= 0 {
		AbortWithError(c, newValidationError("amount_received", "required", "amount received must be positive"))
		return
	}

	order, err := s.orderSvc.ConfirmCash(c.Request.Context(), id, req.AmountReceived, staffActor(req.Actor))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "staff_cancel"
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), id, req.Reason, staffActor(req.Actor))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) refreshPayment(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := s.orderSvc.RefreshPaymentStatus(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
