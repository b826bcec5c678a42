package sequenceRepo

import (
	"context"

	"learnify/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceRepository allocates monotonically increasing sequence numbers.
// Allocation is serialized by the atomic $inc on the counters collection,
// so concurrent callers never observe duplicates.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

type mongoSequenceRepo struct {
	coll *mongo.Collection
}

// NewMongoSequenceRepo returns a SequenceRepository backed by the counters collection.
func NewMongoSequenceRepo() SequenceRepository {
	return &mongoSequenceRepo{
		coll: database.DB().Collection("counters"),
	}
}

// Next atomically increments and returns the counter for the given name.
func (r *mongoSequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
