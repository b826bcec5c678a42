package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnify/services/payment"
	"learnify/services/payment/gateway"
)

// PaymentService is wired by main at startup, after config and gateway
// registration.
var PaymentService payment.Service

// CreatePaymentIntent prices the buyer's cart and opens a payment intent.
func CreatePaymentIntent(c *gin.Context) {
	var input struct {
		ItemIDs  []string `json:"itemIds"`
		Amount   float64  `json:"amount"`
		Currency string   `json:"currency"`
		Gateway  string   `json:"gateway"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	resp, err := PaymentService.CreatePaymentIntent(c.Request.Context(), payment.IntentRequest{
		BuyerID:  c.GetString("buyerID"),
		ItemIDs:  input.ItemIDs,
		Amount:   input.Amount,
		Currency: input.Currency,
		Gateway:  input.Gateway,
	})
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ProcessPayment confirms a payment against the gateway and settles the order.
func ProcessPayment(c *gin.Context) {
	var input struct {
		OrderNumber string `json:"orderNumber"`
		Gateway     string `json:"gateway"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if input.OrderNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderNumber is required"})
		return
	}

	order, err := PaymentService.ProcessPayment(c.Request.Context(), c.GetString("buyerID"), input.OrderNumber, input.Gateway)
	if err != nil {
		var dup *payment.DuplicateEventError
		if errors.As(err, &dup) {
			// The order was already settled; report the state it landed in.
			c.JSON(http.StatusOK, gin.H{
				"success":     true,
				"duplicate":   true,
				"orderNumber": dup.OrderNumber,
				"status":      dup.Status,
			})
			return
		}
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"orderNumber": order.OrderNumber,
		"status":      order.Status,
	})
}

// RequestRefund refunds a completed order inside the policy window.
func RequestRefund(c *gin.Context) {
	orderNumber := c.Param("orderNumber")
	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	refundRef, err := PaymentService.RequestRefund(c.Request.Context(), c.GetString("buyerID"), orderNumber, input.Reason)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"orderNumber":     orderNumber,
		"refundReference": refundRef,
	})
}

// GetOrder returns one of the buyer's orders.
func GetOrder(c *gin.Context) {
	order, err := PaymentService.GetOrder(c.Request.Context(), c.GetString("buyerID"), c.Param("orderNumber"))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders returns the buyer's orders, newest first.
func ListOrders(c *gin.Context) {
	orders, err := PaymentService.ListOrders(c.Request.Context(), c.GetString("buyerID"))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// respondPaymentError maps domain errors onto HTTP statuses. Ambiguous
// gateway outcomes are 202: the payment may still settle via webhook, so
// the client should poll rather than retry.
func respondPaymentError(c *gin.Context, err error) {
	var (
		validationErr *payment.ValidationError
		policyErr     *payment.PolicyViolationError
		configErr     *gateway.ConfigurationError
		gatewayErr    *gateway.GatewayError
		ambiguousErr  *gateway.AmbiguousOutcomeError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "field": validationErr.Field})
	case errors.As(err, &policyErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": policyErr.Reason, "orderNumber": policyErr.OrderNumber})
	case errors.As(err, &configErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": configErr.Error()})
	case errors.As(err, &ambiguousErr):
		c.JSON(http.StatusAccepted, gin.H{
			"error":   "payment outcome not yet known, check order status later",
			"pending": true,
		})
	case errors.As(err, &gatewayErr):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": gatewayErr.Message, "code": gatewayErr.Code})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}
