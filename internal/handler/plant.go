package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/houseplant-tracker/internal/form"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/repository"
	"github.com/sakif/houseplant-tracker/internal/service"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// PlantHandler serves the plant listing, detail and the add / edit / delete
// operations.
//
// DEPENDENCY CHAIN:
//
//	PlantHandler → PlantService → PlantRepository, LedgerRepository, PhotoStore
//
// Ownership is decided by the service. The handler only turns its
// NotFound / Forbidden into the shared denial (see deny in response.go).
type PlantHandler struct {
	plants    *service.PlantService
	flashes   *FlashStore
	view      Presenter
	maxUpload int64
	logger    *slog.Logger
}

// NewPlantHandler creates a PlantHandler. maxUpload caps request bodies
// that may carry a photo.
func NewPlantHandler(
	plants *service.PlantService,
	flashes *FlashStore,
	view Presenter,
	maxUpload int64,
	logger *slog.Logger,
) *PlantHandler {
	return &PlantHandler{
		plants:    plants,
		flashes:   flashes,
		view:      view,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// HandleList returns the caller's plants, optionally filtered.
//
// HTTP: GET /api/plants?species=fern&location=balcony
//
// Both filters are case-insensitive substring matches and combine with AND.
// Pending flash messages are returned (and consumed) alongside the list.
func (h *PlantHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PlantFilter{
		Species:  q.Get("species"),
		Location: q.Get("location"),
	}

	plants, err := h.plants.ListForOwner(r.Context(), principal(r).User.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plantListView{
		Plants:   h.view.plants(plants),
		Species:  filter.Species,
		Location: filter.Location,
		Flashes:  h.flashes.Pop(w, r),
	})
}

// HandleCreate adds a plant.
//
// HTTP: POST /api/plants
// BODY (multipart/form-data, or JSON without a photo):
//
//	name, species, location, watering_frequency, sunlight_preference, photo?
//
// The body is capped before parsing so an oversized upload fails with 413
// without being buffered.
func (h *PlantHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, upload, closePhoto, err := h.readPlantForm(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closePhoto()

	plant, err := h.plants.Create(r.Context(), principal(r).User.ID, plantInput(in), upload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Plant added successfully!")
	finish(w, r, http.StatusCreated, h.view.plant(plant), ListingPath)
}

// HandleDetail returns one plant with its care events and journal entries,
// oldest first.
//
// HTTP: GET /api/plants/{id}
func (h *PlantHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.plants.Detail(r.Context(), principal(r).User.ID, chi.URLParam(r, "id"))
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.view.detail(detail, h.flashes.Pop(w, r)))
}

// HandleUpdate edits a plant. The stored photo is kept unless a new one is
// uploaded.
//
// HTTP: POST /api/plants/{id}
func (h *PlantHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := principal(r).User.ID

	// Ownership is checked before the body is read so that a denial does
	// not depend on what was sent.
	if _, err := h.plants.GetOwned(r.Context(), userID, id); err != nil {
		if isDenied(err) {
			deny(w, r, h.flashes)
			return
		}
		writeError(w, err)
		return
	}

	in, upload, closePhoto, err := h.readPlantForm(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closePhoto()

	plant, err := h.plants.Update(r.Context(), userID, id, plantInput(in), upload)
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Plant updated successfully!")
	finish(w, r, http.StatusOK, h.view.plant(plant), plantPath(plant.ID))
}

// HandleDelete removes a plant with its whole history.
//
// HTTP: POST /api/plants/{id}/delete
func (h *PlantHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.plants.Delete(r.Context(), principal(r).User.ID, chi.URLParam(r, "id"))
	if isDenied(err) {
		deny(w, r, h.flashes)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Plant deleted successfully!")
	finish(w, r, http.StatusOK, MessageResponse{Message: "Plant deleted successfully!", Redirect: ListingPath}, ListingPath)
}

// readPlantForm caps, parses and validates the plant form. The returned
// close func must always be called.
func (h *PlantHandler) readPlantForm(w http.ResponseWriter, r *http.Request) (form.Plant, *storage.Upload, func(), error) {
	noop := func() {}
	limitBody(w, r, h.maxUpload)

	var in form.Plant
	if err := bind(r, &in); err != nil {
		return in, nil, noop, err
	}
	upload, file, err := photoUpload(r)
	if err != nil {
		return in, nil, noop, err
	}
	closePhoto := noop
	if file != nil {
		closePhoto = func() { file.Close() }
		in.PhotoName = upload.Filename
	}
	if err := form.Check(&in); err != nil {
		closePhoto()
		return in, nil, noop, err
	}
	return in, upload, closePhoto, nil
}

func plantInput(in form.Plant) service.PlantInput {
	return service.PlantInput{
		Name:               in.Name,
		Species:            in.Species,
		Location:           in.Location,
		WateringFrequency:  in.WateringFrequency,
		SunlightPreference: model.SunlightPreference(in.SunlightPreference),
	}
}
