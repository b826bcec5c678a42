// File: learnify/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnify/config"
	lcron "learnify/cron"
	"learnify/database"
	courseRepo "learnify/database/repository/course"
	invoiceRepo "learnify/database/repository/invoice"
	orderRepo "learnify/database/repository/order"
	sequenceRepo "learnify/database/repository/sequence"
	transactionRepo "learnify/database/repository/transaction"
	"learnify/handlers"
	"learnify/routes"
	"learnify/services/catalog"
	"learnify/services/enrollment"
	"learnify/services/invoice"
	"learnify/services/payment"
	"learnify/services/payment/gateway"
	"learnify/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitLockCache()
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	ordersRepo := orderRepo.NewMongoOrderRepo()
	ledgerRepo := transactionRepo.NewMongoTransactionRepo()
	invRepo := invoiceRepo.NewMongoInvoiceRepo()
	seqRepo := sequenceRepo.NewMongoSequenceRepo()
	coursesRepo := courseRepo.NewMongoCourseRepo()

	// services.
	catalogService := &catalog.DefaultCatalogService{
		Repo:        coursesRepo,
		CacheClient: utils.GetCacheClient(),
	}
	invoiceService := &invoice.DefaultIssuerService{
		Repo:      invRepo,
		Sequences: seqRepo,
		Logger:    logger,
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskQueueDB,
	})
	defer asynqClient.Close()

	notifier := &enrollment.AsynqNotifier{
		Client: asynqClient,
		Logger: logger,
	}

	paymentService := &payment.DefaultPaymentService{
		Orders:       ordersRepo,
		Ledger:       ledgerRepo,
		Sequences:    seqRepo,
		Catalog:      catalogService,
		Invoices:     invoiceService,
		Notifier:     notifier,
		Locks:        &payment.RedisLocker{Client: utils.GetLockClient()},
		RefundWindow: time.Duration(config.AppConfig.RefundWindowDays) * 24 * time.Hour,
		Logger:       logger,
	}
	paymentService.RegisterGateway(gateway.NewStripeGateway(
		config.AppConfig.StripeKey,
		config.AppConfig.StripeWebhookSecret,
		logger,
	))
	paymentService.RegisterGateway(gateway.NewPayPalGateway(
		config.AppConfig.PayPalClientID,
		config.AppConfig.PayPalSecret,
		config.AppConfig.PayPalWebhookID,
		config.AppConfig.PayPalLive,
		logger,
	))

	handlers.PaymentService = paymentService
	handlers.InvoiceService = invoiceService

	// Background workers: enrollment grants off the task queue, plus the
	// hourly sweep for abandoned PENDING orders.
	enrollmentService := &enrollment.DefaultEnrollmentService{
		Courses: coursesRepo,
		Logger:  logger,
	}
	lcron.InitEnrollmentWorker(enrollmentService)
	sweeper := lcron.InitExpirySweeper(ordersRepo)
	defer sweeper.Stop()

	routes.RegisterRoutes(router)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
