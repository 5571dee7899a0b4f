package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
)

var _ repository.PlantRepository = (*DB)(nil)

const plantColumns = `id, user_id, name, species, location, photo_filename,
	watering_frequency, sunlight_preference, last_watered, created_at`

// CreatePlant inserts a new plant, filling in ID and CreatedAt.
func (db *DB) CreatePlant(ctx context.Context, plant *model.Plant) error {
	plant.ID = xid.New().String()
	plant.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO plants (`+plantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plant.ID,
		plant.OwnerID,
		plant.Name,
		plant.Species,
		plant.Location,
		nullString(plant.PhotoFilename),
		plant.WateringFrequency,
		string(plant.SunlightPreference),
		nullTime(plant.LastWatered),
		plant.CreatedAt,
	)
	if err != nil {
		plant.ID = ""
		return fmt.Errorf("sqlite: creating plant: %w", err)
	}
	return nil
}

// GetPlant retrieves a single plant by ID regardless of owner.
// Ownership is the service layer's concern.
func (db *DB) GetPlant(ctx context.Context, id string) (*model.Plant, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE id = ?`, id)

	p, err := scanPlant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("plant", id)
		}
		return nil, fmt.Errorf("sqlite: getting plant %s: %w", id, err)
	}
	return p, nil
}

// ListPlantsByOwner returns the owner's plants in insertion order.
//
// Filters are case-insensitive substring matches. LOWER() on both sides
// keeps this independent of SQLite's ASCII-only LIKE case folding rules for
// the stored column; wildcards in the user's input are escaped.
func (db *DB) ListPlantsByOwner(ctx context.Context, ownerID string, filter repository.PlantFilter) ([]model.Plant, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{ownerID}
	)
	if s := strings.TrimSpace(filter.Species); s != "" {
		where = append(where, `LOWER(species) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`)
		args = append(args, escapeLike(s))
	}
	if l := strings.TrimSpace(filter.Location); l != "" {
		where = append(where, `LOWER(location) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`)
		args = append(args, escapeLike(l))
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+plantColumns+` FROM plants
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY rowid ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing plants for %s: %w", ownerID, err)
	}
	defer rows.Close()

	return collectPlants(rows)
}

// UpdatePlant overwrites the editable attributes and photo filename.
// last_watered is only ever moved by AddCareEvent.
func (db *DB) UpdatePlant(ctx context.Context, plant *model.Plant) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE plants
		 SET name = ?, species = ?, location = ?, photo_filename = ?,
		     watering_frequency = ?, sunlight_preference = ?
		 WHERE id = ?`,
		plant.Name,
		plant.Species,
		plant.Location,
		nullString(plant.PhotoFilename),
		plant.WateringFrequency,
		string(plant.SunlightPreference),
		plant.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating plant %s: %w", plant.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("plant", plant.ID)
	}
	return nil
}

// DeletePlant removes a plant; ON DELETE CASCADE takes its care events and
// journal entries with it.
func (db *DB) DeletePlant(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM plants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting plant %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("plant", id)
	}
	return nil
}

// ListWateredPlants is the reminder scanner's snapshot read: a single SELECT,
// no transaction held open across the scan.
func (db *DB) ListWateredPlants(ctx context.Context) ([]model.Plant, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+plantColumns+` FROM plants
		 WHERE last_watered IS NOT NULL
		 ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing watered plants: %w", err)
	}
	defer rows.Close()

	return collectPlants(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (*model.Plant, error) {
	var (
		p           model.Plant
		photo       sql.NullString
		sunlight    string
		lastWatered sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Species,
		&p.Location,
		&photo,
		&p.WateringFrequency,
		&sunlight,
		&lastWatered,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PhotoFilename = photo.String
	p.SunlightPreference = model.SunlightPreference(sunlight)
	if lastWatered.Valid {
		t := lastWatered.Time.UTC()
		p.LastWatered = &t
	}
	return &p, nil
}

func collectPlants(rows *sql.Rows) ([]model.Plant, error) {
	plants := make([]model.Plant, 0)
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning plant row: %w", err)
		}
		plants = append(plants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating plants: %w", err)
	}
	return plants, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
