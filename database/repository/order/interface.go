package orderRepo

import (
	"context"
	"errors"
	"time"

	"learnify/database"
	"learnify/models"
	"learnify/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when a conditional status update matched
	// no document, i.e. the order was not in any of the allowed source states.
	ErrStatusConflict = errors.New("order status conflict")
)

// OrderRepository persists orders. All status changes go through the
// conditional Mark* methods so the document-level update doubles as the
// atomic check-and-set for the state machine.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	GetByIntentRef(ctx context.Context, gateway, intentRef string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)

	// SetIntentRef stores the gateway-assigned intent reference. It only
	// succeeds while the ref is unset, so the identifier is written at most once.
	SetIntentRef(ctx context.Context, number, gateway, intentRef string) error

	// MarkCompleted transitions a settlement-eligible order to COMPLETED.
	MarkCompleted(ctx context.Context, number, settlementRef string, paidAt time.Time) error
	// MarkFailed transitions a settlement-eligible order to FAILED.
	MarkFailed(ctx context.Context, number, reason string) error
	// MarkRefunded transitions a COMPLETED order to REFUNDED.
	MarkRefunded(ctx context.Context, number string, refund models.RefundRecord) error
	// CancelStalePending cancels PENDING orders created before the cutoff.
	CancelStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

type mongoOrderRepo struct {
	coll *mongo.Collection
}

// NewMongoOrderRepo returns a new OrderRepository instance using MongoDB.
func NewMongoOrderRepo() OrderRepository {
	repo := &mongoOrderRepo{
		coll: database.DB().Collection("orders"),
	}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Warn("order repo: index creation failed", zap.Error(err))
	}
	return repo
}
