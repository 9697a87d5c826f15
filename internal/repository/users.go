package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/models"
)

type UserRepository interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByWorkerID(ctx context.Context, workerID string) (*models.User, error)
	List(ctx context.Context, role models.Role) ([]models.User, error)
	Update(ctx context.Context, u *models.User) (*models.User, error)
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type userRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func NewUserRepository(database *mongo.Database, logger *zap.Logger) UserRepository {
	return &userRepository{coll: database.Collection(db.UsersCollection), logger: logger}
}

func (r *userRepository) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, u)
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByWorkerID expects an already upper-cased worker id.
func (r *userRepository) FindByWorkerID(ctx context.Context, workerID string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"worker_id": workerID}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context, role models.Role) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, u *models.User) (*models.User, error) {
	update := bson.M{
		"$set": bson.M{
			"full_name":   u.FullName,
			"role":        u.Role,
			"position":    u.Position,
			"nationality": u.Nationality,
			"location":    u.Location,
			"address":     u.Address,
			"image_path":  u.ImagePath,
			"updated_at":  time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.User
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": u.ID}, update, opts).Decode(&updated); err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (r *userRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	update := bson.M{"$set": bson.M{"password": hash, "updated_at": time.Now().UTC()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		r.logger.Error("failed to set password hash", zap.String("user_id", id.Hex()), zap.Error(err))
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
