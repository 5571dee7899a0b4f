package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

func newTestPlantService(store *fakeStore, photos *fakePhotos) *PlantService {
	return NewPlantService(store, store, photos, quietLogger())
}

func fernInput() PlantInput {
	return PlantInput{
		Name:               "Fern",
		Species:            "Nephrolepis",
		Location:           "Balcony",
		WateringFrequency:  3,
		SunlightPreference: model.PartialShade,
	}
}

func photo(name, content string) *storage.Upload {
	return &storage.Upload{Filename: name, Content: strings.NewReader(content)}
}

// =========================================================================
// Create TESTS
// =========================================================================

func TestCreatePlant_WithPhoto(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)

	plant, err := svc.Create(context.Background(), "alice", fernInput(), photo("fern.jpg", "img"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if plant.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", plant.OwnerID)
	}
	if plant.PhotoFilename == "" || !photos.has(plant.PhotoFilename) {
		t.Errorf("PhotoFilename = %q, want a stored file", plant.PhotoFilename)
	}
	if plant.LastWatered != nil {
		t.Error("a new plant must not have last_watered")
	}
}

func TestCreatePlant_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlantInput)
		field  string
	}{
		{"zero frequency", func(in *PlantInput) { in.WateringFrequency = 0 }, "watering_frequency"},
		{"unknown sunlight", func(in *PlantInput) { in.SunlightPreference = "moonlight" }, "sunlight_preference"},
		{"blank name", func(in *PlantInput) { in.Name = "   " }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, photos := newFakeStore(), newFakePhotos()
			svc := newTestPlantService(store, photos)

			in := fernInput()
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), "alice", in, photo("fern.jpg", "img"))

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if len(store.plants) != 0 || len(photos.stored) != 0 {
				t.Error("nothing should be persisted for invalid input")
			}
		})
	}
}

func TestCreatePlant_DatabaseFailureRemovesPhoto(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	store.createPlantErr = errDatabaseOnFire
	svc := newTestPlantService(store, photos)

	_, err := svc.Create(context.Background(), "alice", fernInput(), photo("fern.jpg", "img"))
	if !errors.Is(err, errDatabaseOnFire) {
		t.Fatalf("Create() error = %v, want wrapped database error", err)
	}
	if len(photos.stored) != 0 {
		t.Errorf("stored photos = %v, want none left behind", photos.stored)
	}
	if len(photos.removed) != 1 {
		t.Errorf("removed = %v, want the compensating delete", photos.removed)
	}
}

func TestCreatePlant_UnsupportedPhoto(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	photos.storeErr = apperror.UnsupportedType("guide.pdf")
	svc := newTestPlantService(store, photos)

	_, err := svc.Create(context.Background(), "alice", fernInput(), photo("guide.pdf", "%PDF"))
	if !errors.Is(err, apperror.ErrUnsupportedType) {
		t.Fatalf("Create() error = %v, want ErrUnsupportedType", err)
	}
	if len(store.plants) != 0 {
		t.Error("plant must not be created when the photo is rejected")
	}
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestGetOwned(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), nil)

	if _, err := svc.GetOwned(context.Background(), "alice", plant.ID); err != nil {
		t.Errorf("owner GetOwned() error = %v", err)
	}
	if _, err := svc.GetOwned(context.Background(), "bob", plant.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-owner GetOwned() error = %v, want ErrForbidden", err)
	}
	// NotFound is decided before ownership.
	if _, err := svc.GetOwned(context.Background(), "bob", "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetOwned(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_NonOwnerChangesNothing(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), nil)

	in := fernInput()
	in.Name = "Hijacked"
	if _, err := svc.Update(context.Background(), "bob", plant.ID, in, nil); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Update() error = %v, want ErrForbidden", err)
	}

	got, _ := svc.Get(context.Background(), plant.ID)
	if got.Name != "Fern" {
		t.Errorf("Name = %q, want unchanged", got.Name)
	}
}

func TestDelete_NonOwner(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), nil)

	if err := svc.Delete(context.Background(), "bob", plant.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Delete() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), plant.ID); err != nil {
		t.Errorf("plant should survive a forbidden delete, err = %v", err)
	}
}

// =========================================================================
// Update TESTS
// =========================================================================

func TestUpdate_KeepsPhotoWhenNoneSupplied(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), photo("fern.jpg", "v1"))

	in := fernInput()
	in.WateringFrequency = 7
	updated, err := svc.Update(context.Background(), "alice", plant.ID, in, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.PhotoFilename != plant.PhotoFilename {
		t.Errorf("PhotoFilename = %q, want %q", updated.PhotoFilename, plant.PhotoFilename)
	}
	if updated.WateringFrequency != 7 {
		t.Errorf("WateringFrequency = %d, want 7", updated.WateringFrequency)
	}
}

func TestUpdate_ReplacesPhoto(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), photo("fern.jpg", "v1"))

	updated, err := svc.Update(context.Background(), "alice", plant.ID, fernInput(), photo("fern2.png", "v2"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.PhotoFilename == plant.PhotoFilename {
		t.Fatal("PhotoFilename should change when a new photo is supplied")
	}
	if photos.has(plant.PhotoFilename) {
		t.Error("old photo should be removed after the update")
	}
	if !photos.has(updated.PhotoFilename) {
		t.Error("new photo should be stored")
	}
}

func TestUpdate_LeavesLastWatered(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	ledger := newTestLedgerService(store, photos, fixedClock(t0))
	plant, _ := svc.Create(context.Background(), "alice", fernInput(), nil)
	if _, err := ledger.AddCareEvent(context.Background(), "alice", plant.ID, model.EventWatering, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(context.Background(), "alice", plant.ID, fernInput(), nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := svc.Get(context.Background(), plant.ID)
	if got.LastWatered == nil || !got.LastWatered.Equal(t0) {
		t.Errorf("LastWatered = %v, want %v", got.LastWatered, t0)
	}
}

// =========================================================================
// List / Detail / Delete TESTS
// =========================================================================

func TestListForOwner_OnlyOwnPlantsAndFilters(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	ctx := context.Background()

	fern := fernInput()
	cactus := fernInput()
	cactus.Name, cactus.Species, cactus.Location = "Cactus", "Cereus", "Kitchen"
	for _, in := range []PlantInput{fern, cactus} {
		if _, err := svc.Create(ctx, "alice", in, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create(ctx, "bob", fern, nil); err != nil {
		t.Fatal(err)
	}

	all, _ := svc.ListForOwner(ctx, "alice", repository.PlantFilter{})
	if len(all) != 2 || all[0].Name != "Fern" || all[1].Name != "Cactus" {
		t.Errorf("ListForOwner() = %+v, want Fern then Cactus", all)
	}

	filtered, _ := svc.ListForOwner(ctx, "alice", repository.PlantFilter{Location: "  kitchen "})
	if len(filtered) != 1 || filtered[0].Name != "Cactus" {
		t.Errorf("filtered = %+v, want only Cactus", filtered)
	}
}

func TestDetail(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	ledger := newTestLedgerService(store, photos, fixedClock(t0))
	ctx := context.Background()
	plant, _ := svc.Create(ctx, "alice", fernInput(), nil)
	ledger.AddCareEvent(ctx, "alice", plant.ID, model.EventPruning, "")
	ledger.AddJournalEntry(ctx, "alice", plant.ID, "new frond", nil)

	detail, err := svc.Detail(ctx, "alice", plant.ID)
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if len(detail.Events) != 1 || len(detail.Entries) != 1 {
		t.Errorf("Detail() = %d events, %d entries; want 1, 1", len(detail.Events), len(detail.Entries))
	}

	if _, err := svc.Detail(ctx, "bob", plant.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Detail() by non-owner error = %v, want ErrForbidden", err)
	}
}

func TestDelete_RemovesLedgerAndPhotos(t *testing.T) {
	store, photos := newFakeStore(), newFakePhotos()
	svc := newTestPlantService(store, photos)
	ledger := newTestLedgerService(store, photos, fixedClock(t0))
	ctx := context.Background()

	plant, _ := svc.Create(ctx, "alice", fernInput(), photo("fern.jpg", "p"))
	ledger.AddCareEvent(ctx, "alice", plant.ID, model.EventWatering, "")
	entry, _ := ledger.AddJournalEntry(ctx, "alice", plant.ID, "note", photo("leaf.png", "j"))

	if err := svc.Delete(ctx, "alice", plant.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, plant.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if len(store.events) != 0 || len(store.entries) != 0 {
		t.Errorf("cascade left %d events and %d entries", len(store.events), len(store.entries))
	}
	if photos.has(plant.PhotoFilename) || photos.has(entry.PhotoFilename) {
		t.Error("plant and journal photos should be removed")
	}
}
