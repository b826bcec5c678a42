package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnify/services/payment/gateway"
	"learnify/utils"

	"go.uber.org/zap"
)

// HandleGatewayWebhook receives asynchronous provider notifications. Only
// signature failures are rejected; every other condition is acknowledged so
// the provider stops retrying.
func HandleGatewayWebhook(c *gin.Context) {
	gatewayName := c.Param("gateway")

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	err = PaymentService.HandleWebhook(c.Request.Context(), gatewayName, payload, c.Request.Header)
	if err != nil {
		var sigErr *gateway.InvalidSignatureError
		if errors.As(err, &sigErr) {
			utils.GetLogger().Warn("rejected webhook with bad signature",
				zap.String("gateway", gatewayName))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		// Transient processing failures get a 500 so the provider redelivers.
		utils.GetLogger().Error("webhook processing failed",
			zap.String("gateway", gatewayName),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
