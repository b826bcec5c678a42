package orderRepo

import (
	"context"
	"time"

	"learnify/models"

	"go.mongodb.org/mongo-driver/bson"
)

// settlementEligibleFilter matches orders that a confirm call or webhook may
// still settle. The filtered update is the atomic decision point: whichever
// trigger matches first wins, the loser sees ErrStatusConflict.
func settlementEligibleFilter(number string) bson.M {
	statuses := make([]models.OrderStatus, len(models.SettlementEligible))
	copy(statuses, models.SettlementEligible)
	return bson.M{
		"order_number": number,
		"status":       bson.M{"$in": statuses},
	}
}

// MarkCompleted transitions a settlement-eligible order to COMPLETED and
// records the settlement reference and paid timestamp.
func (r *mongoOrderRepo) MarkCompleted(ctx context.Context, number, settlementRef string, paidAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":                 models.OrderCompleted,
		"gateway_settlement_ref": settlementRef,
		"paid_at":                paidAt,
		"updated_at":             time.Now(),
	}}
	res, err := r.coll.UpdateOne(ctx, settlementEligibleFilter(number), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkFailed transitions a settlement-eligible order to FAILED with the
// provider's reason.
func (r *mongoOrderRepo) MarkFailed(ctx context.Context, number, reason string) error {
	update := bson.M{"$set": bson.M{
		"status":              models.OrderFailed,
		"cancellation_reason": reason,
		"updated_at":          time.Now(),
	}}
	res, err := r.coll.UpdateOne(ctx, settlementEligibleFilter(number), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkRefunded takes the single legal edge out of COMPLETED.
func (r *mongoOrderRepo) MarkRefunded(ctx context.Context, number string, refund models.RefundRecord) error {
	filter := bson.M{
		"order_number": number,
		"status":       models.OrderCompleted,
	}
	update := bson.M{"$set": bson.M{
		"status":     models.OrderRefunded,
		"refund":     refund,
		"updated_at": time.Now(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// CancelStalePending cancels PENDING orders created before the cutoff and
// returns how many were cancelled.
func (r *mongoOrderRepo) CancelStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	filter := bson.M{
		"status":     models.OrderPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{
		"status":              models.OrderCancelled,
		"cancellation_reason": reason,
		"updated_at":          time.Now(),
	}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
