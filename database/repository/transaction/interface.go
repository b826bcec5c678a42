package transactionRepo

import (
	"context"
	"errors"

	"learnify/database"
	"learnify/models"
	"learnify/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateTransaction is returned when an entry with the same
	// (gateway, gateway_txn_id) pair already exists. This is the idempotency
	// guard against webhook replay.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	// ErrNotFound is returned when no entry matches the natural key. For a
	// settle call this indicates an out-of-order or spurious webhook.
	ErrNotFound = errors.New("transaction not found")
)

// TransactionRepository is the append-mostly ledger of money movements.
// Entries are never deleted; a refund is a new entry with a negative amount.
type TransactionRepository interface {
	// Record inserts a new ledger entry. The unique (gateway, gateway_txn_id)
	// index maps duplicate inserts to ErrDuplicateTransaction.
	Record(ctx context.Context, txn *models.Transaction) error
	// Settle updates the pending entry with the given natural key to a
	// terminal status, exactly once.
	Settle(ctx context.Context, gateway, gatewayTxnID string, status models.TransactionStatus, failureReason string, response map[string]interface{}) error
	// MarkRefunded flips a completed payment entry to refunded. Calling it
	// again for the same entry is a no-op.
	MarkRefunded(ctx context.Context, gateway, gatewayTxnID string) error
	GetByGatewayTxnID(ctx context.Context, gateway, gatewayTxnID string) (*models.Transaction, error)
	ListByOrder(ctx context.Context, orderNumber string) ([]models.Transaction, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Transaction, error)
}

type mongoTransactionRepo struct {
	coll *mongo.Collection
}

// NewMongoTransactionRepo returns a new TransactionRepository instance using MongoDB.
func NewMongoTransactionRepo() TransactionRepository {
	repo := &mongoTransactionRepo{
		coll: database.DB().Collection("transactions"),
	}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Warn("transaction repo: index creation failed", zap.Error(err))
	}
	return repo
}
