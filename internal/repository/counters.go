package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
)

type CounterRepository interface {
	// Increment atomically bumps an existing counter and returns the new value.
	Increment(ctx context.Context, name string) (int, error)
	// Seed creates a counter. It fails with a duplicate key error if it exists.
	Seed(ctx context.Context, name string, seq int) error
	Get(ctx context.Context, name string) (int, error)
}

type counterRepository struct {
	coll *mongo.Collection
}

func NewCounterRepository(database *mongo.Database) CounterRepository {
	return &counterRepository{coll: database.Collection(db.CountersCollection)}
}

func (r *counterRepository) Increment(ctx context.Context, name string) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Counter
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&c)
	if err != nil {
		return 0, translate(err)
	}
	return c.Seq, nil
}

func (r *counterRepository) Seed(ctx context.Context, name string, seq int) error {
	_, err := r.coll.InsertOne(ctx, models.Counter{ID: name, Seq: seq})
	return err
}

func (r *counterRepository) Get(ctx context.Context, name string) (int, error) {
	var c models.Counter
	if err := r.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&c); err != nil {
		return 0, translate(err)
	}
	return c.Seq, nil
}
