package orderRepo

import (
	"context"
	"time"

	"learnify/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new order document.
func (r *mongoOrderRepo) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, order)
	return err
}

// GetByNumber returns an order by its order number.
func (r *mongoOrderRepo) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"order_number": number}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIntentRef locates the order holding a gateway intent reference.
func (r *mongoOrderRepo) GetByIntentRef(ctx context.Context, gateway, intentRef string) (*models.Order, error) {
	var order models.Order
	filter := bson.M{"gateway": gateway, "gateway_intent_ref": intentRef}
	err := r.coll.FindOne(ctx, filter).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBuyer fetches all orders belonging to a buyer, newest first.
func (r *mongoOrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.coll.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SetIntentRef writes the gateway intent reference, but only while it is unset.
func (r *mongoOrderRepo) SetIntentRef(ctx context.Context, number, gateway, intentRef string) error {
	filter := bson.M{
		"order_number": number,
		"gateway":      gateway,
		"$or": []bson.M{
			{"gateway_intent_ref": bson.M{"$exists": false}},
			{"gateway_intent_ref": ""},
			{"gateway_intent_ref": intentRef},
		},
	}
	update := bson.M{"$set": bson.M{
		"gateway_intent_ref": intentRef,
		"updated_at":         time.Now(),
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
