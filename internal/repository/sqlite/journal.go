package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
)

func (db *DB) AddJournalEntry(ctx context.Context, entry *model.JournalEntry) error {
	id := xid.New().String()
	entryDate := entry.EntryDate.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO journal_entries (id, plant_id, entry_date, content, photo_filename)
		 VALUES (?, ?, ?, ?, ?)`,
		id,
		entry.PlantID,
		entryDate,
		entry.Content,
		nullString(entry.PhotoFilename),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting journal entry for plant %s: %w", entry.PlantID, err)
	}

	entry.ID = id
	entry.EntryDate = entryDate
	return nil
}

func (db *DB) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	var (
		e     model.JournalEntry
		photo sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, plant_id, entry_date, content, photo_filename
		 FROM journal_entries WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.PlantID, &e.EntryDate, &e.Content, &photo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("journal entry", id)
		}
		return nil, fmt.Errorf("sqlite: getting journal entry %s: %w", id, err)
	}
	e.PhotoFilename = photo.String
	return &e, nil
}

// ListJournalEntries returns the plant's entries oldest first.
func (db *DB) ListJournalEntries(ctx context.Context, plantID string) ([]model.JournalEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, plant_id, entry_date, content, photo_filename
		 FROM journal_entries
		 WHERE plant_id = ?
		 ORDER BY entry_date ASC, id ASC`,
		plantID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing journal entries for plant %s: %w", plantID, err)
	}
	defer rows.Close()

	entries := make([]model.JournalEntry, 0)
	for rows.Next() {
		var (
			e     model.JournalEntry
			photo sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PlantID, &e.EntryDate, &e.Content, &photo); err != nil {
			return nil, fmt.Errorf("sqlite: scanning journal entry row: %w", err)
		}
		e.PhotoFilename = photo.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating journal entries: %w", err)
	}
	return entries, nil
}

func (db *DB) DeleteJournalEntry(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting journal entry %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("journal entry", id)
	}
	return nil
}
