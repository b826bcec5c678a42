package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"learnify/config"
	"learnify/services/enrollment"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// InitEnrollmentWorker runs the async worker in background.
func InitEnrollmentWorker(enrollSvc enrollment.Service) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(enrollment.TypeOrderCompleted, handleOrderCompletedTask(enrollSvc))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[EnrollmentWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[EnrollmentWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[EnrollmentWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleOrderCompletedTask(enrollSvc enrollment.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p enrollment.OrderCompletedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[EnrollmentHandler] 🔴 Invalid payload: %v", err)
			return err
		}

		log.Printf("[EnrollmentHandler] 🎓 Granting enrollments for order %s (buyer %s, %d items)",
			p.OrderNumber, p.BuyerID, len(p.Items))

		if err := enrollSvc.GrantForOrder(ctx, p); err != nil {
			log.Printf("[EnrollmentHandler] ❌ Failed to grant enrollments for %s: %v", p.OrderNumber, err)
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[EnrollmentWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
