package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
)

// newTestDB opens a fresh database file in a per-test temp directory.
// A real file (rather than ":memory:") lets the pool open several
// connections, which the concurrency tests rely on.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{Identity: model.Identity{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$not-a-real-hash",
	}}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// MIGRATIONS
// =========================================================================

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	createTestUser(t, first, "persisted")
	first.Close()

	second, err := New(path)
	if err != nil {
		t.Fatalf("reopening New() error = %v", err)
	}
	defer second.Close()

	if taken, _ := second.UsernameTaken(context.Background(), "persisted"); !taken {
		t.Error("user created before reopen should still exist")
	}
}

func TestNew_InMemory(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	defer db.Close()

	createTestUser(t, db, "ephemeral")
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Identity: model.Identity{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
	}}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		wantErr  error
	}{
		{"same username", "alice", "other@x.com", apperror.ErrDuplicateUsername},
		{"same email", "bob", "alice@example.com", apperror.ErrDuplicateEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			createTestUser(t, db, "alice")

			dup := &model.User{Identity: model.Identity{
				Username: tt.username, Email: tt.email, PasswordHash: "h",
			}}
			err := db.CreateUser(context.Background(), dup)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateUser() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, apperror.ErrConflict) {
				t.Errorf("duplicate error should also match ErrConflict")
			}
			if dup.ID != "" {
				t.Errorf("failed CreateUser() left ID = %q", dup.ID)
			}
		})
	}
}

func TestCreateUser_UsernameIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	other := &model.User{Identity: model.Identity{
		Username: "Alice", Email: "upper@example.com", PasswordHash: "h",
	}}
	if err := db.CreateUser(context.Background(), other); err != nil {
		t.Fatalf("CreateUser(Alice) error = %v, want success", err)
	}
}

func TestCreateUser_ConcurrentDuplicateUsername(t *testing.T) {
	db := newTestDB(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
		others    []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &model.User{Identity: model.Identity{
				Username:     "racer",
				Email:        fmt.Sprintf("racer%d@example.com", i),
				PasswordHash: "h",
			}}
			err := db.CreateUser(context.Background(), u)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperror.ErrDuplicateUsername):
				dupes++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if dupes != workers-1 {
		t.Errorf("duplicates = %d, want %d", dupes, workers-1)
	}
}

// =========================================================================
// LOOKUPS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "getbyid")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Identity.Username != "getbyid" {
		t.Errorf("Username = %q, want %q", found.Identity.Username, "getbyid")
	}
	if found.Identity.PasswordHash != created.Identity.PasswordHash {
		t.Errorf("PasswordHash was not round-tripped")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "lookup")

	found, err := db.GetUserByUsername(context.Background(), "lookup")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}

	if _, err := db.GetUserByUsername(context.Background(), "LOOKUP"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("lookup must be exact-case, got err = %v", err)
	}
}

func TestUsernameAndEmailTaken(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "taken")
	ctx := context.Background()

	if ok, err := db.UsernameTaken(ctx, "taken"); err != nil || !ok {
		t.Errorf("UsernameTaken(taken) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := db.UsernameTaken(ctx, "free"); err != nil || ok {
		t.Errorf("UsernameTaken(free) = %v, %v; want false, nil", ok, err)
	}
	if ok, err := db.EmailTaken(ctx, "taken@example.com"); err != nil || !ok {
		t.Errorf("EmailTaken() = %v, %v; want true, nil", ok, err)
	}
}

// =========================================================================
// DELETE + CASCADE
// =========================================================================

func TestDeleteUser_CascadesEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "leaving")
	plant := createTestPlant(t, db, owner.ID, "Fern")

	event := &model.CareEvent{PlantID: plant.ID, EventType: model.EventWatering, EventDate: time.Now()}
	if err := db.AddCareEvent(ctx, event, true); err != nil {
		t.Fatalf("AddCareEvent() error = %v", err)
	}
	entry := &model.JournalEntry{PlantID: plant.ID, EntryDate: time.Now(), Content: "new frond"}
	if err := db.AddJournalEntry(ctx, entry); err != nil {
		t.Fatalf("AddJournalEntry() error = %v", err)
	}
	session := &model.Session{UserID: owner.ID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := db.DeleteUser(ctx, owner.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	plants, err := db.ListPlantsByOwner(ctx, owner.ID, emptyFilter)
	if err != nil {
		t.Fatalf("ListPlantsByOwner() error = %v", err)
	}
	if len(plants) != 0 {
		t.Errorf("ListPlantsByOwner() after user delete = %d plants, want 0", len(plants))
	}
	if _, err := db.GetCareEvent(ctx, event.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("care event should be gone, err = %v", err)
	}
	if _, err := db.GetJournalEntry(ctx, entry.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("journal entry should be gone, err = %v", err)
	}
	if _, err := db.GetSession(ctx, session.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("session should be gone, err = %v", err)
	}
}

func TestListUserPhotos(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "photographer")
	other := createTestUser(t, db, "neighbour")

	fern := createTestPlant(t, db, owner.ID, "Fern")
	fern.PhotoFilename = "1_fern.png"
	if err := db.UpdatePlant(ctx, fern); err != nil {
		t.Fatalf("UpdatePlant() error = %v", err)
	}
	createTestPlant(t, db, owner.ID, "Bare pothos")
	entry := &model.JournalEntry{PlantID: fern.ID, EntryDate: time.Now(), Content: "new frond", PhotoFilename: "2_frond.png"}
	if err := db.AddJournalEntry(ctx, entry); err != nil {
		t.Fatalf("AddJournalEntry() error = %v", err)
	}
	plain := &model.JournalEntry{PlantID: fern.ID, EntryDate: time.Now(), Content: "no photo"}
	if err := db.AddJournalEntry(ctx, plain); err != nil {
		t.Fatalf("AddJournalEntry() error = %v", err)
	}

	cactus := createTestPlant(t, db, other.ID, "Cactus")
	cactus.PhotoFilename = "3_cactus.png"
	if err := db.UpdatePlant(ctx, cactus); err != nil {
		t.Fatalf("UpdatePlant() error = %v", err)
	}

	got, err := db.ListUserPhotos(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListUserPhotos() error = %v", err)
	}
	sort.Strings(got)
	want := []string{"1_fern.png", "2_frond.png"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ListUserPhotos() = %v, want %v", got, want)
	}

	none, err := db.ListUserPhotos(ctx, "missing-user")
	if err != nil {
		t.Fatalf("ListUserPhotos(missing) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListUserPhotos(missing) = %v, want empty", none)
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteUser(context.Background(), "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteUser() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "sessions")
	now := time.Now().UTC()

	live := &model.Session{UserID: user.ID, ExpiresAt: now.Add(time.Hour)}
	stale := &model.Session{UserID: user.ID, ExpiresAt: now.Add(-time.Minute)}
	for _, s := range []*model.Session{live, stale} {
		if err := db.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	got, err := db.GetSession(ctx, live.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, user.ID)
	}
	if !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, live.ExpiresAt)
	}

	pruned, err := db.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if _, err := db.GetSession(ctx, stale.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("stale session should be pruned, err = %v", err)
	}

	if err := db.DeleteSession(ctx, live.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := db.DeleteSession(ctx, live.ID); err != nil {
		t.Errorf("second DeleteSession() should be a no-op, got %v", err)
	}
}
