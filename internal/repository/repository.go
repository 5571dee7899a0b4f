// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage implements all of them on one *DB.
package repository

import (
	"context"
	"time"

	"github.com/sakif/houseplant-tracker/internal/model"
)

// PlantFilter narrows ListForOwner. Empty fields match everything; set fields
// are case-insensitive substring matches combined with AND.
type PlantFilter struct {
	Species  string
	Location string
}

type UserRepository interface {
	// CreateUser must report apperror.ErrDuplicateUsername /
	// apperror.ErrDuplicateEmail when a UNIQUE constraint rejects the row.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	DeleteUser(ctx context.Context, id string) error
	// ListUserPhotos returns the photo filenames of the user's plants and
	// journal entries, so they can be removed from storage with the account.
	ListUserPhotos(ctx context.Context, userID string) ([]string, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type PlantRepository interface {
	CreatePlant(ctx context.Context, plant *model.Plant) error
	GetPlant(ctx context.Context, id string) (*model.Plant, error)
	ListPlantsByOwner(ctx context.Context, ownerID string, filter PlantFilter) ([]model.Plant, error)
	UpdatePlant(ctx context.Context, plant *model.Plant) error
	// DeletePlant also removes the plant's care events and journal entries.
	DeletePlant(ctx context.Context, id string) error
	// ListWateredPlants returns every plant with a non-null last_watered, in
	// one read.
	ListWateredPlants(ctx context.Context) ([]model.Plant, error)
}

type LedgerRepository interface {
	// AddCareEvent inserts the event and, when setLastWatered is true, moves
	// the parent plant's last_watered to event.EventDate in the same
	// transaction.
	AddCareEvent(ctx context.Context, event *model.CareEvent, setLastWatered bool) error
	GetCareEvent(ctx context.Context, id string) (*model.CareEvent, error)
	ListCareEvents(ctx context.Context, plantID string) ([]model.CareEvent, error)
	DeleteCareEvent(ctx context.Context, id string) error

	AddJournalEntry(ctx context.Context, entry *model.JournalEntry) error
	GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error)
	ListJournalEntries(ctx context.Context, plantID string) ([]model.JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, id string) error
}
