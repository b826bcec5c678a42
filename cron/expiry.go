package cron

import (
	"context"
	"time"

	"learnify/config"
	orderRepo "learnify/database/repository/order"
	"learnify/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// InitExpirySweeper schedules the hourly sweep that cancels PENDING orders
// whose payment window has lapsed. Abandoned checkouts would otherwise sit
// PENDING forever since no gateway event will ever arrive for them.
func InitExpirySweeper(orders orderRepo.OrderRepository) *cron.Cron {
	logger := utils.GetLogger().With(zap.String("job", "order-expiry"))

	c := cron.New()
	_, err := c.AddFunc("@hourly", func() {
		ttl := time.Duration(config.AppConfig.PendingOrderTTLHours) * time.Hour
		cutoff := time.Now().Add(-ttl)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cancelled, err := orders.CancelStalePending(ctx, cutoff, "payment window expired")
		if err != nil {
			logger.Error("stale order sweep failed", zap.Error(err))
			return
		}
		if cancelled > 0 {
			logger.Info("cancelled stale pending orders",
				zap.Int64("count", cancelled),
				zap.Time("cutoff", cutoff))
		}
	})
	if err != nil {
		logger.Error("could not schedule expiry sweep", zap.Error(err))
		return c
	}
	c.Start()
	return c
}
