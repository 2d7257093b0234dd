package database

import (
	"context"
	"errors"

	"github.com/syntaxa/coffeechest/internal/database/models"
)

// ErrUserNotFound is returned when no record exists for a chat id.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user configuration records.
// All mutations go through single-document atomic operations keyed by chat id.
type UserRepository interface {
	// FindByChatID returns the record for chatID or ErrUserNotFound.
	FindByChatID(ctx context.Context, chatID int64) (*models.User, error)
	// All returns every registered user.
	All(ctx context.Context) ([]models.User, error)
	// Create inserts a fresh record with defaults applied.
	Create(ctx context.Context, user *models.User) error
	// Update applies the given fields to the record for chatID.
	Update(ctx context.Context, chatID int64, fields map[string]interface{}) error
	// Delete removes the record for chatID. Deleting an absent record
	// returns ErrUserNotFound.
	Delete(ctx context.Context, chatID int64) error
}

// SchemaVersionRepository owns the singleton schema version counter.
type SchemaVersionRepository interface {
	// Version returns the current schema version, creating the singleton
	// at zero if it does not exist yet.
	Version(ctx context.Context) (int, error)
	// Increment bumps the version by one and returns the new value.
	Increment(ctx context.Context) (int, error)
}
