package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
)

var _ repository.LedgerRepository = (*DB)(nil)

// AddCareEvent inserts a care event and, for waterings, moves the plant's
// last_watered to the event's date.
//
// TRANSACTIONS:
// The two statements must land together or not at all. A watering event
// without the matching last_watered (or the reverse) would make the reminder
// scanner disagree with the plant's history. The pattern is:
//
//	tx, err := db.BeginTx(ctx, nil)
//	defer tx.Rollback() // no-op once Commit has succeeded
//	... tx.ExecContext ...
//	return tx.Commit()
//
// Every statement inside uses tx, never db.conn, so the pool cannot hand the
// second statement to a different connection.
func (db *DB) AddCareEvent(ctx context.Context, event *model.CareEvent, setLastWatered bool) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning care event transaction: %w", err)
	}
	defer tx.Rollback()

	id := xid.New().String()
	eventDate := event.EventDate.UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO care_events (id, plant_id, event_type, event_date, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		id,
		event.PlantID,
		string(event.EventType),
		eventDate,
		event.Notes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting care event for plant %s: %w", event.PlantID, err)
	}

	if setLastWatered {
		result, err := tx.ExecContext(ctx,
			`UPDATE plants SET last_watered = ? WHERE id = ?`,
			eventDate,
			event.PlantID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating last_watered for plant %s: %w", event.PlantID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("plant", event.PlantID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing care event: %w", err)
	}

	event.ID = id
	event.EventDate = eventDate
	return nil
}

func (db *DB) GetCareEvent(ctx context.Context, id string) (*model.CareEvent, error) {
	var (
		e         model.CareEvent
		eventType string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, plant_id, event_type, event_date, notes
		 FROM care_events WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.PlantID, &eventType, &e.EventDate, &e.Notes)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("care event", id)
		}
		return nil, fmt.Errorf("sqlite: getting care event %s: %w", id, err)
	}
	e.EventType = model.EventType(eventType)
	return &e, nil
}

// ListCareEvents returns the plant's events oldest first.
func (db *DB) ListCareEvents(ctx context.Context, plantID string) ([]model.CareEvent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, plant_id, event_type, event_date, notes
		 FROM care_events
		 WHERE plant_id = ?
		 ORDER BY event_date ASC, id ASC`,
		plantID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing care events for plant %s: %w", plantID, err)
	}
	defer rows.Close()

	events := make([]model.CareEvent, 0)
	for rows.Next() {
		var (
			e         model.CareEvent
			eventType string
		)
		if err := rows.Scan(&e.ID, &e.PlantID, &eventType, &e.EventDate, &e.Notes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning care event row: %w", err)
		}
		e.EventType = model.EventType(eventType)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating care events: %w", err)
	}
	return events, nil
}

// DeleteCareEvent removes one event. It deliberately leaves the plant's
// last_watered alone, even when the deleted event was the latest watering.
func (db *DB) DeleteCareEvent(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM care_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting care event %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("care event", id)
	}
	return nil
}
