package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// DeniedMessage is the one message shown for a plant that does not exist
// and for a plant that belongs to someone else.
const DeniedMessage = "You do not have permission to access this plant."

// PhotoStore is the part of storage.Intake the services use. Store returns
// the bare stored filename; Remove undoes a Store.
type PhotoStore interface {
	Store(originalName string, r io.Reader) (string, error)
	Remove(filename string) error
}

var _ PhotoStore = (*storage.Intake)(nil)

// PlantInput is the editable part of a plant.
type PlantInput struct {
	Name               string
	Species            string
	Location           string
	WateringFrequency  int
	SunlightPreference model.SunlightPreference
}

// validate repeats the checks the form layer already made. The database has
// CHECK constraints for the same rules; this catches them with a readable
// message before the write.
func (in *PlantInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Species = strings.TrimSpace(in.Species)
	in.Location = strings.TrimSpace(in.Location)

	var fields []apperror.FieldError
	if in.Name == "" {
		fields = append(fields, apperror.FieldError{Field: "name", Message: "This field is required."})
	}
	if in.Species == "" {
		fields = append(fields, apperror.FieldError{Field: "species", Message: "This field is required."})
	}
	if in.Location == "" {
		fields = append(fields, apperror.FieldError{Field: "location", Message: "This field is required."})
	}
	if in.WateringFrequency < 1 {
		fields = append(fields, apperror.FieldError{Field: "watering_frequency", Message: "Number must be at least 1."})
	}
	if !in.SunlightPreference.Valid() {
		fields = append(fields, apperror.FieldError{Field: "sunlight_preference", Message: "Not a valid choice."})
	}
	if len(fields) > 0 {
		return apperror.InvalidFields(fields)
	}
	return nil
}

// PlantDetail is a plant together with its history, oldest first.
type PlantDetail struct {
	Plant   *model.Plant
	Events  []model.CareEvent
	Entries []model.JournalEntry
}

// PlantService owns the plant lifecycle and the ownership rule: every
// operation on an existing plant first loads it (NotFound) and then checks
// the owner (Forbidden).
type PlantService struct {
	plants repository.PlantRepository
	ledger repository.LedgerRepository
	photos PhotoStore
	logger *slog.Logger
}

// NewPlantService creates a PlantService.
func NewPlantService(
	plants repository.PlantRepository,
	ledger repository.LedgerRepository,
	photos PhotoStore,
	logger *slog.Logger,
) *PlantService {
	return &PlantService{
		plants: plants,
		ledger: ledger,
		photos: photos,
		logger: logger,
	}
}

// Create stores the optional photo, then inserts the plant. If the insert
// fails the stored photo is removed again.
func (s *PlantService) Create(ctx context.Context, ownerID string, in PlantInput, photo *storage.Upload) (*model.Plant, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	filename, err := s.storePhoto(photo)
	if err != nil {
		return nil, err
	}

	plant := &model.Plant{
		OwnerID:            ownerID,
		Name:               in.Name,
		Species:            in.Species,
		Location:           in.Location,
		PhotoFilename:      filename,
		WateringFrequency:  in.WateringFrequency,
		SunlightPreference: in.SunlightPreference,
	}
	if err := s.plants.CreatePlant(ctx, plant); err != nil {
		s.discardPhoto(filename)
		return nil, fmt.Errorf("service/plant: creating plant: %w", err)
	}

	s.logger.Info("plant created",
		slog.String("plantID", plant.ID),
		slog.String("ownerID", ownerID),
		slog.String("name", plant.Name),
	)
	return plant, nil
}

// Get loads a plant without any ownership check.
func (s *PlantService) Get(ctx context.Context, id string) (*model.Plant, error) {
	plant, err := s.plants.GetPlant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/plant: getting plant %s: %w", id, err)
	}
	return plant, nil
}

// Authorize returns apperror.ErrForbidden unless requesterID owns plant.
func (s *PlantService) Authorize(plant *model.Plant, requesterID string) error {
	return authorize(plant, requesterID)
}

// GetOwned loads a plant and checks that requesterID owns it. NotFound is
// decided before ownership.
func (s *PlantService) GetOwned(ctx context.Context, requesterID, id string) (*model.Plant, error) {
	return ownedPlant(ctx, s.plants, requesterID, id)
}

// ListForOwner returns the owner's plants in the order they were added.
func (s *PlantService) ListForOwner(ctx context.Context, ownerID string, filter repository.PlantFilter) ([]model.Plant, error) {
	filter.Species = strings.TrimSpace(filter.Species)
	filter.Location = strings.TrimSpace(filter.Location)

	plants, err := s.plants.ListPlantsByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("service/plant: listing plants for %s: %w", ownerID, err)
	}
	return plants, nil
}

// Detail returns an owned plant with its care events and journal entries.
func (s *PlantService) Detail(ctx context.Context, requesterID, id string) (*PlantDetail, error) {
	plant, err := s.GetOwned(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.ledger.ListCareEvents(ctx, plant.ID)
	if err != nil {
		return nil, fmt.Errorf("service/plant: listing care events for %s: %w", plant.ID, err)
	}
	entries, err := s.ledger.ListJournalEntries(ctx, plant.ID)
	if err != nil {
		return nil, fmt.Errorf("service/plant: listing journal entries for %s: %w", plant.ID, err)
	}
	return &PlantDetail{Plant: plant, Events: events, Entries: entries}, nil
}

// Update overwrites the editable attributes. The photo is replaced only when
// a new one is supplied; the old file is removed after the row is saved.
// last_watered is never touched here.
func (s *PlantService) Update(ctx context.Context, requesterID, id string, in PlantInput, photo *storage.Upload) (*model.Plant, error) {
	plant, err := s.GetOwned(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	newFile, err := s.storePhoto(photo)
	if err != nil {
		return nil, err
	}

	oldFile := plant.PhotoFilename
	plant.Name = in.Name
	plant.Species = in.Species
	plant.Location = in.Location
	plant.WateringFrequency = in.WateringFrequency
	plant.SunlightPreference = in.SunlightPreference
	if newFile != "" {
		plant.PhotoFilename = newFile
	}

	if err := s.plants.UpdatePlant(ctx, plant); err != nil {
		s.discardPhoto(newFile)
		return nil, fmt.Errorf("service/plant: updating plant %s: %w", id, err)
	}
	if newFile != "" {
		s.discardPhoto(oldFile)
	}

	s.logger.Info("plant updated", slog.String("plantID", plant.ID))
	return plant, nil
}

// Delete removes an owned plant with its care events and journal entries,
// then deletes the photos that belonged to them.
func (s *PlantService) Delete(ctx context.Context, requesterID, id string) error {
	plant, err := s.GetOwned(ctx, requesterID, id)
	if err != nil {
		return err
	}

	entries, err := s.ledger.ListJournalEntries(ctx, plant.ID)
	if err != nil {
		return fmt.Errorf("service/plant: listing journal entries for %s: %w", plant.ID, err)
	}

	if err := s.plants.DeletePlant(ctx, plant.ID); err != nil {
		return fmt.Errorf("service/plant: deleting plant %s: %w", plant.ID, err)
	}

	s.discardPhoto(plant.PhotoFilename)
	for _, e := range entries {
		s.discardPhoto(e.PhotoFilename)
	}

	s.logger.Info("plant deleted",
		slog.String("plantID", plant.ID),
		slog.Int("journalEntries", len(entries)),
	)
	return nil
}

func (s *PlantService) storePhoto(photo *storage.Upload) (string, error) {
	return storePhoto(s.photos, photo)
}

func (s *PlantService) discardPhoto(filename string) {
	discardPhoto(s.photos, s.logger, filename)
}

// ownedPlant loads plant id and checks requesterID owns it. Shared by the
// plant and ledger services.
func ownedPlant(ctx context.Context, plants repository.PlantRepository, requesterID, id string) (*model.Plant, error) {
	plant, err := plants.GetPlant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: getting plant %s: %w", id, err)
	}
	if err := authorize(plant, requesterID); err != nil {
		return nil, err
	}
	return plant, nil
}

func authorize(plant *model.Plant, requesterID string) error {
	if !plant.OwnedBy(requesterID) {
		return apperror.Forbidden(DeniedMessage)
	}
	return nil
}

func storePhoto(photos PhotoStore, photo *storage.Upload) (string, error) {
	if photo == nil || photo.Filename == "" || photo.Content == nil {
		return "", nil
	}
	name, err := photos.Store(photo.Filename, photo.Content)
	if err != nil {
		return "", fmt.Errorf("service: storing photo: %w", err)
	}
	return name, nil
}

func discardPhoto(photos PhotoStore, logger *slog.Logger, filename string) {
	if filename == "" {
		return
	}
	if err := photos.Remove(filename); err != nil {
		logger.Warn("failed to remove photo",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}
