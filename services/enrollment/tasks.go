package enrollment

import (
	"context"
	"encoding/json"

	"learnify/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeOrderCompleted = "order:completed"

// OrderCompletedPayload is the queued snapshot of a settled order. The
// worker runs from this snapshot alone so a later refund does not change
// what was granted.
type OrderCompletedPayload struct {
	OrderNumber string              `json:"orderNumber"`
	BuyerID     string              `json:"buyerId"`
	Items       []OrderCompletedItem `json:"items"`
}

type OrderCompletedItem struct {
	CourseID  string  `json:"courseId"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// NewOrderCompletedTask builds the queue task for a completed order.
func NewOrderCompletedTask(order *models.Order) (*asynq.Task, []asynq.Option, error) {
	p := OrderCompletedPayload{
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
	}
	for _, item := range order.Items {
		p.Items = append(p.Items, OrderCompletedItem{
			CourseID:  item.CourseID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeOrderCompleted, b)
	opts := []asynq.Option{asynq.MaxRetry(5), asynq.Queue("default")}
	return task, opts, nil
}

// AsynqNotifier enqueues completion work instead of running it inline, so
// settlement latency never pays for enrollment writes.
type AsynqNotifier struct {
	Client *asynq.Client
	Logger *zap.Logger
}

// OrderCompleted queues the enrollment grant for the settled order.
func (n *AsynqNotifier) OrderCompleted(ctx context.Context, order *models.Order) error {
	task, opts, err := NewOrderCompletedTask(order)
	if err != nil {
		return err
	}
	info, err := n.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return err
	}
	n.Logger.Info("enqueued order completion task",
		zap.String("order", order.OrderNumber),
		zap.String("task_id", info.ID))
	return nil
}
