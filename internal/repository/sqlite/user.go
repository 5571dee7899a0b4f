package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user, filling in ID and CreatedAt.
//
// Uniqueness of username and email is left to the UNIQUE constraints rather
// than a SELECT-then-INSERT: two concurrent registrations for the same name
// race on the index, exactly one INSERT wins, and the loser gets
// apperror.ErrDuplicateUsername.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Identity.Username,
		user.Identity.Email,
		user.Identity.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		user.ID = ""
		switch {
		case isUniqueViolation(err, "users.username"):
			return apperror.DuplicateUsername()
		case isUniqueViolation(err, "users.email"):
			return apperror.DuplicateEmail()
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Identity.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername looks a user up by exact (case-sensitive) username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE username = ?`,
		username,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by username: %w", err)
	}
	return u, nil
}

func (db *DB) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`, username)
}

func (db *DB) EmailTaken(ctx context.Context, email string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email)
}

// DeleteUser removes the user. Foreign keys cascade the delete to sessions,
// plants, and every plant's care events and journal entries.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// ListUserPhotos returns the stored photo filenames of every plant the user
// owns and of those plants' journal entries.
func (db *DB) ListUserPhotos(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT photo_filename FROM plants
		 WHERE user_id = ? AND photo_filename IS NOT NULL
		 UNION
		 SELECT j.photo_filename FROM journal_entries j
		 JOIN plants p ON p.id = j.plant_id
		 WHERE p.user_id = ? AND j.photo_filename IS NOT NULL`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing photos of user %s: %w", userID, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning photo filename: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating photo filenames: %w", err)
	}
	return names, nil
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("sqlite: existence check: %w", err)
	}
	return found, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Identity.Username,
		&u.Identity.Email,
		&u.Identity.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
