package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/syntaxa/coffeechest/internal/database/models"
)

const userCollectionName = "users"

// MongoUserRepository implements UserRepository for MongoDB.
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB user repository.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// FindByChatID returns the record for chatID or ErrUserNotFound.
func (r *MongoUserRepository) FindByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user %d: %w", chatID, err)
	}
	return &user, nil
}

// All returns every registered user.
func (r *MongoUserRepository) All(ctx context.Context) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// Create inserts a fresh record, filling unset fields with defaults.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now()
	}
	if user.NotificationTime == "" {
		user.NotificationTime = models.DefaultNotificationTime
	}
	if user.TimeZone == "" {
		user.TimeZone = models.DefaultTimeZone
	}
	if user.Cookie.Probability == 0 {
		user.Cookie.Probability = models.DefaultCookieProbability
	}

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to insert user %d: %w", user.ChatID, err)
	}
	return nil
}

// Update applies fields to the record for chatID with a single atomic $set.
// Nil values are unset instead, so callers can clear staging fields like
// selected_hour in the same operation.
func (r *MongoUserRepository) Update(ctx context.Context, chatID int64, fields map[string]interface{}) error {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
		} else {
			set[k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"chat_id": chatID}, update)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", chatID, err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the record for chatID.
func (r *MongoUserRepository) Delete(ctx context.Context, chatID int64) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", chatID, err)
	}
	if result.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
