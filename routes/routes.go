package routes

import (
	"net/http"
	"time"

	"learnify/handlers"
	"learnify/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes registers the settlement endpoints.
func RegisterPaymentRoutes(r *gin.Engine) {
	api := r.Group("/api/payments")
	{
		api.Use(middleware.JWTAuthBuyerMiddleware())
		api.POST("/intent", handlers.CreatePaymentIntent)
		api.POST("/process", handlers.ProcessPayment)
		api.POST("/refund/:orderNumber", handlers.RequestRefund)
	}
}

// RegisterOrderRoutes registers buyer-scoped order reads.
func RegisterOrderRoutes(r *gin.Engine) {
	api := r.Group("/api/orders")
	{
		api.Use(middleware.JWTAuthBuyerMiddleware())
		api.GET("", handlers.ListOrders)
		api.GET("/:orderNumber", handlers.GetOrder)
	}
}

// RegisterInvoiceRoutes registers buyer-scoped invoice reads.
func RegisterInvoiceRoutes(r *gin.Engine) {
	api := r.Group("/api/invoices")
	{
		api.Use(middleware.JWTAuthBuyerMiddleware())
		api.GET("", handlers.ListInvoices)
		api.GET("/:invoiceNumber", handlers.GetInvoice)
	}
}

// RegisterWebhookRoutes registers the provider notification endpoint.
// Authenticated by signature verification, never by JWT.
func RegisterWebhookRoutes(r *gin.Engine) {
	r.POST("/api/webhooks/:gateway", handlers.HandleGatewayWebhook)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Learnify"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	// Webhook and health routes are registered ahead of the limiter:
	// provider redelivery bursts must get an acknowledgment, never a 429.
	RegisterWebhookRoutes(r)
	RegisterHealthRoute(r)

	r.Use(middleware.RateLimitMiddleware())

	RegisterPaymentRoutes(r)
	RegisterOrderRoutes(r)
	RegisterInvoiceRoutes(r)
}
