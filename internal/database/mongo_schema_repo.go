package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntaxa/coffeechest/internal/database/models"
)

const schemaVersionCollectionName = "schema_version"

// MongoSchemaVersionRepository implements SchemaVersionRepository for MongoDB.
// The collection holds exactly one document.
type MongoSchemaVersionRepository struct {
	collection *mongo.Collection
}

// NewMongoSchemaVersionRepository creates a new MongoDB schema version repository.
func NewMongoSchemaVersionRepository(db *mongo.Database) *MongoSchemaVersionRepository {
	return &MongoSchemaVersionRepository{
		collection: db.Collection(schemaVersionCollectionName),
	}
}

// Version returns the current schema version, creating the singleton at zero
// if it does not exist yet.
func (r *MongoSchemaVersionRepository) Version(ctx context.Context) (int, error) {
	var doc models.SchemaVersion
	err := r.collection.FindOne(ctx, bson.M{}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, insErr := r.collection.InsertOne(ctx, models.SchemaVersion{Version: 0}); insErr != nil {
				return 0, fmt.Errorf("failed to create schema version document: %w", insErr)
			}
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return doc.Version, nil
}

// Increment bumps the version by one and returns the new value.
func (r *MongoSchemaVersionRepository) Increment(ctx context.Context) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc models.SchemaVersion
	err := r.collection.FindOneAndUpdate(ctx, bson.M{}, bson.M{"$inc": bson.M{"version": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment schema version: %w", err)
	}
	return doc.Version, nil
}
