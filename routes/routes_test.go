package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"learnify/config"
	"learnify/handlers"
	"learnify/models"
	"learnify/services/payment"
	"learnify/services/payment/gateway"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackPaymentService acknowledges every webhook and is never asked anything
// else in these tests.
type ackPaymentService struct{}

func (s *ackPaymentService) RegisterGateway(g gateway.Gateway) {}

func (s *ackPaymentService) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.IntentResponse, error) {
	return &payment.IntentResponse{}, nil
}

func (s *ackPaymentService) ProcessPayment(ctx context.Context, buyerID, orderNumber, gatewayName string) (*models.Order, error) {
	return &models.Order{}, nil
}

func (s *ackPaymentService) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, headers http.Header) error {
	return nil
}

func (s *ackPaymentService) RequestRefund(ctx context.Context, buyerID, orderNumber, reason string) (string, error) {
	return "", nil
}

func (s *ackPaymentService) GetOrder(ctx context.Context, buyerID, orderNumber string) (*models.Order, error) {
	return &models.Order{}, nil
}

func (s *ackPaymentService) ListOrders(ctx context.Context, buyerID string) ([]models.Order, error) {
	return nil, nil
}

func TestWebhookRouteBypassesRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppConfig.MaxRequestsPerMin = 2
	handlers.PaymentService = &ackPaymentService{}

	r := gin.New()
	RegisterRoutes(r)

	// Provider redelivery bursts far past the per-IP limit must all be
	// acknowledged.
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader("{}"))
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "webhook request %d must not be throttled", i+1)
	}

	// The buyer-facing API from the same source IP is throttled once the
	// limit is spent.
	var limited bool
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "buyer API must hit the rate limit")
}
