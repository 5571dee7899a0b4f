package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// LedgerService records care events and journal entries against plants the
// requester owns.
type LedgerService struct {
	plants repository.PlantRepository
	ledger repository.LedgerRepository
	photos PhotoStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerService creates a LedgerService that timestamps with time.Now.
func NewLedgerService(
	plants repository.PlantRepository,
	ledger repository.LedgerRepository,
	photos PhotoStore,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		plants: plants,
		ledger: ledger,
		photos: photos,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for event and entry dates.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// AddCareEvent logs care for an owned plant, dated now (UTC). A watering
// event also moves the plant's last_watered to that date, in the same
// transaction as the insert.
func (s *LedgerService) AddCareEvent(ctx context.Context, requesterID, plantID string, eventType model.EventType, notes string) (*model.CareEvent, error) {
	plant, err := ownedPlant(ctx, s.plants, requesterID, plantID)
	if err != nil {
		return nil, err
	}
	if !eventType.Valid() {
		return nil, apperror.ValidationFailed("event_type", "Not a valid choice.")
	}

	event := &model.CareEvent{
		PlantID:   plant.ID,
		EventType: eventType,
		EventDate: s.now().UTC(),
		Notes:     strings.TrimSpace(notes),
	}
	watering := eventType == model.EventWatering
	if err := s.ledger.AddCareEvent(ctx, event, watering); err != nil {
		return nil, fmt.Errorf("service/ledger: adding %s event to plant %s: %w", eventType, plant.ID, err)
	}

	s.logger.Info("care event added",
		slog.String("plantID", plant.ID),
		slog.String("eventID", event.ID),
		slog.String("type", string(eventType)),
	)
	return event, nil
}

// AddJournalEntry adds a dated note (and optional photo) to an owned plant.
func (s *LedgerService) AddJournalEntry(ctx context.Context, requesterID, plantID, content string, photo *storage.Upload) (*model.JournalEntry, error) {
	plant, err := ownedPlant(ctx, s.plants, requesterID, plantID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "This field is required.")
	}

	filename, err := storePhoto(s.photos, photo)
	if err != nil {
		return nil, err
	}

	entry := &model.JournalEntry{
		PlantID:       plant.ID,
		EntryDate:     s.now().UTC(),
		Content:       content,
		PhotoFilename: filename,
	}
	if err := s.ledger.AddJournalEntry(ctx, entry); err != nil {
		discardPhoto(s.photos, s.logger, filename)
		return nil, fmt.Errorf("service/ledger: adding journal entry to plant %s: %w", plant.ID, err)
	}

	s.logger.Info("journal entry added",
		slog.String("plantID", plant.ID),
		slog.String("entryID", entry.ID),
	)
	return entry, nil
}

// ListCareEvents returns an owned plant's events, oldest first.
func (s *LedgerService) ListCareEvents(ctx context.Context, requesterID, plantID string) ([]model.CareEvent, error) {
	plant, err := ownedPlant(ctx, s.plants, requesterID, plantID)
	if err != nil {
		return nil, err
	}
	events, err := s.ledger.ListCareEvents(ctx, plant.ID)
	if err != nil {
		return nil, fmt.Errorf("service/ledger: listing care events for %s: %w", plant.ID, err)
	}
	return events, nil
}

// ListJournalEntries returns an owned plant's entries, oldest first.
func (s *LedgerService) ListJournalEntries(ctx context.Context, requesterID, plantID string) ([]model.JournalEntry, error) {
	plant, err := ownedPlant(ctx, s.plants, requesterID, plantID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListJournalEntries(ctx, plant.ID)
	if err != nil {
		return nil, fmt.Errorf("service/ledger: listing journal entries for %s: %w", plant.ID, err)
	}
	return entries, nil
}

// DeleteCareEvent removes one event after checking the requester owns its
// plant, and returns that plant's ID. The plant's last_watered is left as
// is, even when the deleted event was its latest watering.
func (s *LedgerService) DeleteCareEvent(ctx context.Context, requesterID, eventID string) (string, error) {
	event, err := s.ledger.GetCareEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("service/ledger: getting care event %s: %w", eventID, err)
	}
	if _, err := ownedPlant(ctx, s.plants, requesterID, event.PlantID); err != nil {
		return "", err
	}
	if err := s.ledger.DeleteCareEvent(ctx, event.ID); err != nil {
		return "", fmt.Errorf("service/ledger: deleting care event %s: %w", event.ID, err)
	}

	s.logger.Info("care event deleted",
		slog.String("plantID", event.PlantID),
		slog.String("eventID", event.ID),
	)
	return event.PlantID, nil
}

// DeleteJournalEntry removes one entry (and its photo) after checking the
// requester owns its plant, and returns that plant's ID.
func (s *LedgerService) DeleteJournalEntry(ctx context.Context, requesterID, entryID string) (string, error) {
	entry, err := s.ledger.GetJournalEntry(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("service/ledger: getting journal entry %s: %w", entryID, err)
	}
	if _, err := ownedPlant(ctx, s.plants, requesterID, entry.PlantID); err != nil {
		return "", err
	}
	if err := s.ledger.DeleteJournalEntry(ctx, entry.ID); err != nil {
		return "", fmt.Errorf("service/ledger: deleting journal entry %s: %w", entry.ID, err)
	}
	discardPhoto(s.photos, s.logger, entry.PhotoFilename)

	s.logger.Info("journal entry deleted",
		slog.String("plantID", entry.PlantID),
		slog.String("entryID", entry.ID),
	)
	return entry.PlantID, nil
}
