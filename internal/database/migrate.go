package database

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/syntaxa/coffeechest/internal/database/models"
)

// Migration is one startup-time schema upgrade step. Every migration must be
// idempotent: running it against already-migrated data performs no harmful
// writes.
type Migration struct {
	Name  string
	Apply func(ctx context.Context) error
}

// RunMigrations applies every migration past the stored schema version, in
// order, bumping the version only after each successful application. A
// failure aborts startup; the version is left at the last successful step so
// a restart resumes from there.
func RunMigrations(ctx context.Context, versions SchemaVersionRepository, migrations []Migration) error {
	version, err := versions.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for version < len(migrations) {
		m := migrations[version]
		if err := m.Apply(ctx); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", version+1, m.Name, err)
		}
		version, err = versions.Increment(ctx)
		if err != nil {
			return fmt.Errorf("failed to bump schema version after %s: %w", m.Name, err)
		}
		log.Printf("Database upgraded to version %d (%s)", version, m.Name)
	}
	return nil
}

// DefaultMigrations is the ordered migration list for the users collection.
func DefaultMigrations(db *mongo.Database) []Migration {
	users := db.Collection(userCollectionName)
	return []Migration{
		{
			Name: "timezone fields",
			Apply: func(ctx context.Context) error {
				_, err := users.UpdateMany(ctx,
					bson.M{"$or": bson.A{
						bson.M{"time_zone": bson.M{"$exists": false}},
						bson.M{"notification_time": bson.M{"$exists": false}},
					}},
					bson.M{"$set": bson.M{
						"time_zone":         models.DefaultTimeZone,
						"notification_time": models.DefaultNotificationTime,
					}},
				)
				return err
			},
		},
		{
			Name: "cookie defaults",
			Apply: func(ctx context.Context) error {
				_, err := users.UpdateMany(ctx,
					bson.M{"cookie": bson.M{"$exists": false}},
					bson.M{"$set": bson.M{"cookie": models.CookieSettings{
						Enabled:     false,
						Probability: models.DefaultCookieProbability,
					}}},
				)
				return err
			},
		},
	}
}
