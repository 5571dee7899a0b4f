package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "validation_error", "message": "...", "fields": [{"field": "name", "message": "..."}]}
//
// "fields" is only present for form validation failures.
//
// PLANT-SCOPED DENIALS:
// A plant that does not exist and a plant that belongs to someone else are
// answered identically (see deny): a "danger" flash with service.DeniedMessage
// and 303 See Other to the plant listing. A caller probing IDs therefore
// cannot tell which plant IDs exist. Only handlers that operate on one plant,
// care event or journal entry use deny; everything else goes through
// writeError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/auth"
	"github.com/sakif/houseplant-tracker/internal/service"
)

// ListingPath is where plant-scoped denials and most redirects land.
const ListingPath = "/api/plants"

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string                `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string                `json:"message"` // Human-readable description
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// MessageResponse is the body of successful requests that return no entity.
type MessageResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and machine-readable
// type. The order matters: the duplicate errors also match ErrConflict.
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), isBodyTooLarge(err):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnsupportedType):
		return http.StatusBadRequest, "unsupported_type"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it. The service layer never sees status codes; this is the only
// place they are chosen.
//
// Unknown errors become a generic 500. The raw message might contain SQL or
// file paths, so it is logged and never sent.
func writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)

	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{
			Error:   kind,
			Message: "An internal error occurred",
		})
		return
	}

	resp := ErrorResponse{Error: kind, Message: err.Error()}
	if status == http.StatusRequestEntityTooLarge {
		resp.Message = "Upload is too large."
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Fields = appErr.Fields
		if len(resp.Fields) == 0 && appErr.Field != "" {
			resp.Fields = []apperror.FieldError{{Field: appErr.Field, Message: appErr.Message}}
		}
	}
	writeJSON(w, status, resp)
}

func isBodyTooLarge(err error) bool {
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

// isDenied reports whether err should be answered with deny.
func isDenied(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrForbidden)
}

// deny answers a plant-scoped NotFound or Forbidden. Both get the same flash
// and the same redirect, for browsers and API clients alike.
func deny(w http.ResponseWriter, r *http.Request, flashes *FlashStore) {
	flashes.Add(w, r, FlashDanger, service.DeniedMessage)
	http.Redirect(w, r, ListingPath, http.StatusSeeOther)
}

// finish completes a successful mutation. Browsers are redirected to
// location; API clients get status and body as JSON.
func finish(w http.ResponseWriter, r *http.Request, status int, body any, location string) {
	if auth.WantsHTML(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	writeJSON(w, status, body)
}

// backTo returns the request's Referer when it points at this site, or
// fallback otherwise.
func backTo(r *http.Request, fallback string) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return fallback
	}
	if local := auth.SafeNext(u.RequestURI()); local != "" {
		return local
	}
	return fallback
}

// principal returns the caller attached by auth.RequireAuth.
func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
