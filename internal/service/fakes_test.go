package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// Using a fake (not a mock framework) keeps tests easy to read: you can see
// exactly what the fake does.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]*model.User
	sessions map[string]*model.Session
	plants   []*model.Plant // insertion order
	events   []*model.CareEvent
	entries  []*model.JournalEntry

	// set to a non-nil error to simulate a database failure
	createPlantErr error
	addEventErr    error
	addEntryErr    error
	listPhotosErr  error
	// simulates another request winning the UNIQUE race after the pre-check
	createUserErr error
}

var (
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.SessionRepository = (*fakeStore)(nil)
	_ repository.PlantRepository   = (*fakeStore)(nil)
	_ repository.LedgerRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Identity.Username == user.Identity.Username {
			return apperror.DuplicateUsername()
		}
		if u.Identity.Email == user.Identity.Email {
			return apperror.DuplicateEmail()
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now().UTC()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Identity.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := f.GetUserByUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeStore) EmailTaken(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Identity.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	for sid, s := range f.sessions {
		if s.UserID == id {
			delete(f.sessions, sid)
		}
	}
	owned := make(map[string]bool)
	kept := f.plants[:0]
	for _, p := range f.plants {
		if p.OwnerID == id {
			owned[p.ID] = true
			continue
		}
		kept = append(kept, p)
	}
	f.plants = kept

	keptEvents := f.events[:0]
	for _, e := range f.events {
		if !owned[e.PlantID] {
			keptEvents = append(keptEvents, e)
		}
	}
	f.events = keptEvents

	keptEntries := f.entries[:0]
	for _, e := range f.entries {
		if !owned[e.PlantID] {
			keptEntries = append(keptEntries, e)
		}
	}
	f.entries = keptEntries
	return nil
}

func (f *fakeStore) ListUserPhotos(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPhotosErr != nil {
		return nil, f.listPhotosErr
	}
	owned := make(map[string]bool)
	names := make([]string, 0)
	for _, p := range f.plants {
		if p.OwnerID != userID {
			continue
		}
		owned[p.ID] = true
		if p.PhotoFilename != "" {
			names = append(names, p.PhotoFilename)
		}
	}
	for _, e := range f.entries {
		if owned[e.PlantID] && e.PhotoFilename != "" {
			names = append(names, e.PhotoFilename)
		}
	}
	return names, nil
}

// --- sessions ---

func (f *fakeStore) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = f.id("session")
	}
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- plants ---

func (f *fakeStore) CreatePlant(_ context.Context, p *model.Plant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPlantErr != nil {
		return f.createPlantErr
	}
	p.ID = f.id("plant")
	p.CreatedAt = time.Now().UTC()
	copied := *p
	f.plants = append(f.plants, &copied)
	return nil
}

func (f *fakeStore) findPlant(id string) (*model.Plant, int) {
	for i, p := range f.plants {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (f *fakeStore) GetPlant(_ context.Context, id string) (*model.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := f.findPlant(id)
	if p == nil {
		return nil, apperror.NotFound("plant", id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) ListPlantsByOwner(_ context.Context, ownerID string, filter repository.PlantFilter) ([]model.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contains := func(field, sub string) bool {
		return strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	out := make([]model.Plant, 0)
	for _, p := range f.plants {
		if p.OwnerID != ownerID {
			continue
		}
		if filter.Species != "" && !contains(p.Species, filter.Species) {
			continue
		}
		if filter.Location != "" && !contains(p.Location, filter.Location) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) UpdatePlant(_ context.Context, p *model.Plant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, _ := f.findPlant(p.ID)
	if existing == nil {
		return apperror.NotFound("plant", p.ID)
	}
	lastWatered := existing.LastWatered
	*existing = *p
	existing.LastWatered = lastWatered
	return nil
}

func (f *fakeStore) DeletePlant(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, i := f.findPlant(id)
	if i < 0 {
		return apperror.NotFound("plant", id)
	}
	f.plants = append(f.plants[:i], f.plants[i+1:]...)

	keptEvents := f.events[:0]
	for _, e := range f.events {
		if e.PlantID != id {
			keptEvents = append(keptEvents, e)
		}
	}
	f.events = keptEvents

	keptEntries := f.entries[:0]
	for _, e := range f.entries {
		if e.PlantID != id {
			keptEntries = append(keptEntries, e)
		}
	}
	f.entries = keptEntries
	return nil
}

func (f *fakeStore) ListWateredPlants(_ context.Context) ([]model.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Plant, 0)
	for _, p := range f.plants {
		if p.LastWatered != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// --- ledger ---

func (f *fakeStore) AddCareEvent(_ context.Context, e *model.CareEvent, setLastWatered bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addEventErr != nil {
		return f.addEventErr
	}
	p, _ := f.findPlant(e.PlantID)
	if p == nil {
		return apperror.NotFound("plant", e.PlantID)
	}
	e.ID = f.id("event")
	copied := *e
	f.events = append(f.events, &copied)
	if setLastWatered {
		d := e.EventDate
		p.LastWatered = &d
	}
	return nil
}

func (f *fakeStore) GetCareEvent(_ context.Context, id string) (*model.CareEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("care event", id)
}

func (f *fakeStore) ListCareEvents(_ context.Context, plantID string) ([]model.CareEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CareEvent, 0)
	for _, e := range f.events {
		if e.PlantID == plantID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteCareEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("care event", id)
}

func (f *fakeStore) AddJournalEntry(_ context.Context, e *model.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addEntryErr != nil {
		return f.addEntryErr
	}
	e.ID = f.id("entry")
	copied := *e
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeStore) GetJournalEntry(_ context.Context, id string) (*model.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("journal entry", id)
}

func (f *fakeStore) ListJournalEntries(_ context.Context, plantID string) ([]model.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.JournalEntry, 0)
	for _, e := range f.entries {
		if e.PlantID == plantID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteJournalEntry(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("journal entry", id)
}

// fakePhotos records stored and removed filenames instead of touching disk.
type fakePhotos struct {
	mu       sync.Mutex
	n        int
	stored   map[string]string // filename → content
	removed  []string
	storeErr error
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{stored: make(map[string]string)}
}

func (f *fakePhotos) Store(originalName string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return "", f.storeErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.n++
	name := fmt.Sprintf("stored-%d-%s", f.n, originalName)
	f.stored[name] = string(data)
	return name, nil
}

func (f *fakePhotos) Remove(filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, filename)
	delete(f.stored, filename)
	return nil
}

func (f *fakePhotos) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stored[name]
	return ok
}

var errDatabaseOnFire = errors.New("database is on fire")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
