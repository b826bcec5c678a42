package transactionRepo

import (
	"context"
	"time"

	"learnify/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record inserts a new ledger entry.
func (r *mongoTransactionRepo) Record(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.CreatedAt = time.Now()

	_, err := r.coll.InsertOne(ctx, txn)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTransaction
	}
	return err
}

// Settle moves the pending entry with the given natural key to a terminal
// status. Only a pending entry matches, so the first reconciliation event
// wins and repeats see ErrNotFound.
func (r *mongoTransactionRepo) Settle(ctx context.Context, gateway, gatewayTxnID string, status models.TransactionStatus, failureReason string, response map[string]interface{}) error {
	now := time.Now()
	set := bson.M{
		"status":       status,
		"processed_at": now,
	}
	if failureReason != "" {
		set["failure_reason"] = failureReason
	}
	if response != nil {
		set["gateway_response"] = response
	}

	filter := bson.M{
		"gateway":        gateway,
		"gateway_txn_id": gatewayTxnID,
		"status":         models.TransactionPending,
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRefunded flips a completed payment entry to refunded.
func (r *mongoTransactionRepo) MarkRefunded(ctx context.Context, gateway, gatewayTxnID string) error {
	filter := bson.M{
		"gateway":        gateway,
		"gateway_txn_id": gatewayTxnID,
		"status":         models.TransactionCompleted,
	}
	update := bson.M{"$set": bson.M{
		"status":      models.TransactionRefunded,
		"refunded_at": time.Now(),
	}}
	// Zero matches means the entry was already refunded or never completed;
	// callers treat that as a duplicate notification.
	_, err := r.coll.UpdateOne(ctx, filter, update)
	return err
}

// GetByGatewayTxnID returns the entry with the given natural key.
func (r *mongoTransactionRepo) GetByGatewayTxnID(ctx context.Context, gateway, gatewayTxnID string) (*models.Transaction, error) {
	var txn models.Transaction
	filter := bson.M{"gateway": gateway, "gateway_txn_id": gatewayTxnID}
	err := r.coll.FindOne(ctx, filter).Decode(&txn)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByOrder fetches all ledger entries for an order, oldest first.
func (r *mongoTransactionRepo) ListByOrder(ctx context.Context, orderNumber string) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"order_number": orderNumber}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// ListByBuyer fetches all ledger entries for a buyer, newest first.
func (r *mongoTransactionRepo) ListByBuyer(ctx context.Context, buyerID string) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.coll.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}
