package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smartorder/smartorder/internal/order/domain"
)

type checkoutRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone"`
	Notes          string `json:"notes"`
	DeviceID       string `json:"device_id"`
	PaymentMethod  string `json:"payment_method"`
	DiscountCode   string `json:"discount_code"`
	DiscountID     int64  `json:"discount_id"`
	Items          []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

func (s *Server) issueIdempotencyKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"idempotency_key": s.orderSvc.NewIdempotencyKey()})
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body is not valid JSON"))
		return
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		AbortWithError(c, newValidationError("customer_name", "required", "customer name is required"))
		return
	}

	domainReq := orderdomain.CheckoutRequest{
		IdempotencyKey: req.IdempotencyKey,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Notes:          req.Notes,
		DeviceID:       req.DeviceID,
		PaymentMethod:  req.PaymentMethod,
		DiscountCode:   req.DiscountCode,
		DiscountID:     req.DiscountID,
	}
	for _, item := range req.Items {
		domainReq.Items = append(domainReq.Items, orderdomain.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	result, err := s.orderSvc.Checkout(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"order":       result.Order,
		"replayed":    result.Replayed,
		"payment_url": result.PaymentURL,
	})
}
