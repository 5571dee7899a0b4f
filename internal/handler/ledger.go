package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/houseplant-tracker/internal/form"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/service"
)

// LedgerHandler records and removes care events and journal entries.
//
//	LedgerHandler → LedgerService → PlantRepository (ownership), LedgerRepository
type LedgerHandler struct {
	ledger    *service.LedgerService
	flashes   *FlashStore
	view      Presenter
	maxUpload int64
	logger    *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(
	ledger *service.LedgerService,
	flashes *FlashStore,
	view Presenter,
	maxUpload int64,
	logger *slog.Logger,
) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		flashes:   flashes,
		view:      view,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

func plantPath(id string) string {
	return ListingPath + "/" + id
}

// HandleAddCareEvent logs care for a plant. A watering event also updates
// the plant's last watered date.
//
// HTTP: POST /api/plants/{id}/care-events
// BODY: event_type (watering|fertilizing|pruning|repotting), notes?
func (h *LedgerHandler) HandleAddCareEvent(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "id")

	var in form.CareEvent
	if err := bind(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := form.Check(&in); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.ledger.AddCareEvent(r.Context(), principal(r).User.ID, plantID, model.EventType(in.EventType), in.Notes)
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Care event added successfully!")
	finish(w, r, http.StatusCreated, h.view.careEvent(event), plantPath(plantID))
}

// HandleAddJournalEntry adds a dated note, optionally with a photo.
//
// HTTP: POST /api/plants/{id}/journal-entries
// BODY (multipart/form-data, or JSON without a photo): content, photo?
func (h *LedgerHandler) HandleAddJournalEntry(w http.ResponseWriter, r *http.Request) {
	plantID := chi.URLParam(r, "id")
	limitBody(w, r, h.maxUpload)

	var in form.JournalEntry
	if err := bind(r, &in); err != nil {
		writeError(w, err)
		return
	}
	upload, file, err := photoUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if file != nil {
		defer file.Close()
		in.PhotoName = upload.Filename
	}
	if err := form.Check(&in); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.ledger.AddJournalEntry(r.Context(), principal(r).User.ID, plantID, in.Content, upload)
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Journal entry added successfully!")
	finish(w, r, http.StatusCreated, h.view.journalEntry(entry), plantPath(plantID))
}

// HandleDeleteCareEvent removes one care event. The plant's last watered
// date is not recalculated.
//
// HTTP: POST /api/care-events/{id}/delete
func (h *LedgerHandler) HandleDeleteCareEvent(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.ledger.DeleteCareEvent(r.Context(), principal(r).User.ID, chi.URLParam(r, "id"))
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	back := backTo(r, plantPath(plantID))
	h.flashes.Add(w, r, FlashSuccess, "Care event deleted successfully!")
	finish(w, r, http.StatusOK, MessageResponse{Message: "Care event deleted successfully!", Redirect: back}, back)
}

// HandleDeleteJournalEntry removes one journal entry and its photo.
//
// HTTP: POST /api/journal-entries/{id}/delete
func (h *LedgerHandler) HandleDeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	plantID, err := h.ledger.DeleteJournalEntry(r.Context(), principal(r).User.ID, chi.URLParam(r, "id"))
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	back := backTo(r, plantPath(plantID))
	h.flashes.Add(w, r, FlashSuccess, "Journal entry deleted successfully!")
	finish(w, r, http.StatusOK, MessageResponse{Message: "Journal entry deleted successfully!", Redirect: back}, back)
}
